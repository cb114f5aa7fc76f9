package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jjshay/music-videos-app/internal/models"
)

// sseStream wraps a response writer for server-sent events.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by this connection")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseStream{w: w, flusher: flusher}, nil
}

// send writes one event frame. Encoding failures are ignored — the client
// is gone or the struct is marshalable by construction.
func (s *sseStream) send(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.flusher.Flush()
}

// forward drains a pipeline event channel into the stream.
func (s *sseStream) forward(events <-chan models.Event) {
	for ev := range events {
		s.send(ev)
	}
}
