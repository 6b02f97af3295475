package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind_Wrapped(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("%w: option 3 out of range", ErrInvalidInput)

	req.Equal("InvalidInput", Kind(err))
	req.Equal(http.StatusBadRequest, MapToHTTPStatus(err))
}

func TestKind_Unknown(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("disk on fire")

	req.Equal("Internal", Kind(err))
	req.Equal(http.StatusInternalServerError, MapToHTTPStatus(err))
	req.Equal(http.StatusOK, MapToHTTPStatus(nil))
}

func TestMapToHTTPStatus_Conflicts(t *testing.T) {
	req := require.New(t)

	req.Equal(http.StatusConflict, MapToHTTPStatus(ErrDuplicateVote))
	req.Equal(http.StatusConflict, MapToHTTPStatus(ErrSlotUnavailable))
	req.Equal(http.StatusConflict, MapToHTTPStatus(ErrInactive))
	req.Equal(http.StatusUnauthorized, MapToHTTPStatus(ErrAuth))
}
