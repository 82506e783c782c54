package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// diffFilter keeps diffs touching at least one watched field. An empty filter keeps all.
type diffFilter map[string]bool

func newDiffFilter(fields []string) (diffFilter, error) {
	f := make(diffFilter, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		switch field {
		case "status", "transcript":
			f[field] = true
		default:
			return nil, fmt.Errorf("unknown watch field %q", field)
		}
	}
	return f, nil
}

func (f diffFilter) keep(d *domain.SessionDiff) bool {
	if len(f) == 0 {
		return true
	}
	if f["status"] && (d.Status != nil || d.CurrentNodeID != nil) {
		return true
	}
	return f["transcript"] && (len(d.Transcript) > 0 || d.Rewritten)
}

// subscribeEvents streams session diffs as server-sent events until the client
// leaves or the session is deleted.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	var watch []string
	if err := runtime.BindQueryParameter("form", false, false, "watch", r.URL.Query(), &watch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	filter, err := newDiffFilter(watch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	updates, err := s.sessions.Watch(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("sse client connected", logging.SessionID(sessionID))

	var prev *domain.Session
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client disconnected", logging.SessionID(sessionID))
			return
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			diff := domain.Diff(prev, snap)
			prev = snap
			if diff == nil || !filter.keep(diff) {
				continue
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("sse encode failed", logging.SessionID(sessionID), logging.Err(err))
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
