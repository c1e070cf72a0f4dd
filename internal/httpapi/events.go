package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/storyreader/storyreader/pkg/events"
)

const eventStreamBuffer = 128

// WithEventStream serves pipeline events from pub at GET /api/events.
func WithEventStream(pub *events.Publisher) Option {
	return func(hd *Handler) { hd.events = pub }
}

// Events handles GET /api/events as a server-sent event stream. The
// optional types query parameter is a comma-separated event type filter.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var types []events.EventType
	for _, t := range splitCSV(r.URL.Query().Get("types")) {
		types = append(types, events.EventType(t))
	}

	subID := xid.New().String()
	ch := h.events.Subscribe(subID, eventStreamBuffer, types...)
	defer h.events.Unsubscribe(subID)

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Type, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
