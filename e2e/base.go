package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"society-live/auth"
	"society-live/domain"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	issuer auth.TokenIssuer
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, no node to test against")
	}
	s.issuer = auth.NewTokenIssuer(s.Config.JWTSecret, s.Config.JWTIssuer)
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseSuite) Token(identity domain.Identity) string {
	token, err := s.issuer.GenerateToken(identity, time.Hour)
	s.Require().NoError(err)
	return token
}

// Call sends a JSON request as identity and decodes the response into out
// when non-nil. It returns the status code.
func (s *BaseSuite) Call(identity domain.Identity, method, path string, body, out any) int {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.Token(identity))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	line := fmt.Sprintf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		line += "\n" + string(data)
	}
	s.T().Log(line)

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		s.Require().NoError(json.Unmarshal(data, out))
	}
	return resp.StatusCode
}

// Connect opens a websocket as identity and joins every room, waiting for
// each joined acknowledgement.
func (s *BaseSuite) Connect(identity domain.Identity, rooms ...domain.RoomID) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: s.Config.ServerAddr, Path: "/ws", RawQuery: "token=" + s.Token(identity)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	for _, room := range rooms {
		s.Require().NoError(conn.WriteJSON(map[string]string{"action": "join", "room": string(room)}))
		env := s.Next(conn)
		s.Require().Equal(domain.EventJoined, env.Event, "join %s refused: %v", room, env.Payload)
	}
	return conn
}

// Next reads the next envelope, failing after five seconds.
func (s *BaseSuite) Next(conn *websocket.Conn) domain.Envelope {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var env domain.Envelope
	s.Require().NoError(conn.ReadJSON(&env))
	return env
}
