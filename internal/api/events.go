package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// events streams the activity feed as server-sent events: a ready event,
// the retained history, then live events until the client disconnects or
// the feed closes. Every activity event is sent as "log".
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Subscribe before reading history so nothing published in between is
	// lost. An event may then be sent twice; clients dedupe on id.
	live, cancel := s.deps.Feed.Subscribe()
	defer cancel()
	history := s.deps.Feed.History()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "ready", map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339Nano)}); err != nil {
		return
	}
	var lastID uint64
	for _, ev := range history {
		if err := writeSSE(w, "log", ev); err != nil {
			return
		}
		lastID = ev.ID
	}
	flusher.Flush()

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-live:
			if !open {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			if err := writeSSE(w, "log", ev); err != nil {
				zap.L().Debug("api: sse write", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "api: marshal sse data")
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return eris.Wrap(err, "api: write sse event")
	}
	return nil
}
