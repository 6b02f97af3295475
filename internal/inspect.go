package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultPrefix = "poll:"

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// InspectHandler renders the keys under the "prefix" query parameter.
func InspectHandler(db *badger.DB, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
}

// StartDebugServer serves the inspector on its own port until the process exits.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	mux.Handle(endpoint, InspectHandler(db, mapper, statsProvider))
	address := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", port, endpoint))

	go func() {
		server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug inspector stopped", "error", err)
		}
	}()
}

// DefaultMapper reads keys shaped "<type>:<namespace...>:<id>" holding JSON
// documents. Index and guard keys have no JSON body.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		EntityID:  parts[len(parts)-1],
		Namespace: "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) > 2 {
		row.Namespace = strings.Join(parts[1:len(parts)-1], ":")
	}

	var doc map[string]any
	if len(val) == 0 || json.Unmarshal(val, &doc) != nil {
		return row
	}
	if created, ok := doc["createdAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			row.Timestamp = ts.Format("2006-01-02 15:04:05")
		}
	}
	for _, field := range []string{"question", "name", "topic", "purpose"} {
		if v, ok := doc[field].(string); ok && v != "" {
			row.Detail = v
			break
		}
	}
	if status, ok := doc["status"].(string); ok {
		row.Detail = fmt.Sprintf("[%s] %s", status, row.Detail)
	}
	return row
}
