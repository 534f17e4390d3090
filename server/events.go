package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wudi/pdfoverlay/compose"
	"github.com/wudi/pdfoverlay/observability"
)

// Event is one progress message on the /events stream.
type Event struct {
	Job   string `json:"job"`
	Index int    `json:"index"`
	Total int    `json:"total"`
	Kind  string `json:"kind,omitempty"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func progressEvent(job string, p compose.Progress) Event {
	return Event{Job: job, Index: p.Index, Total: p.Total, Kind: string(p.Kind), Done: p.Done}
}

const subscriberBuffer = 64

// hub fans progress events out to websocket subscribers of a job.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *hub) subscribe(job string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[job] == nil {
		h.subs[job] = make(map[chan Event]struct{})
	}
	h.subs[job][ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[job][ch]; ok {
			delete(h.subs[job], ch)
			if len(h.subs[job]) == 0 {
				delete(h.subs, job)
			}
		}
	}
}

// publish never blocks; a subscriber that falls behind misses events.
func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.Job] {
		select {
		case ch <- ev:
		default:
		}
	}
}

const writeWait = 10 * time.Second

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	job := r.URL.Query().Get("job")
	if job == "" {
		s.writeError(w, http.StatusBadRequest, errMissingJob)
		return
	}
	events, unsubscribe := s.hub.subscribe(job)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", observability.Error("error", err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Done || ev.Error != "" {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
		}
	}
}
