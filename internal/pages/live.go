package pages

import (
	"encoding/json"
	"sync"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/salonmirai/sitesync/pkg/metrics"
)

// Update is the message sent to live viewers.
type Update struct {
	Page  PageID      `json:"page"`
	Model interface{} `json:"model"`
}

// Viewer receives encoded updates for one page. Slow viewers miss
// intermediate updates; the next one carries the full page again.
type Viewer struct {
	page PageID
	C    <-chan []byte
	send chan []byte
}

// Hub re-projects pages for connected viewers whenever the document changes.
type Hub struct {
	mu      sync.Mutex
	doc     *content.Document
	viewers map[PageID]map[*Viewer]struct{}
}

func NewHub(doc *content.Document) *Hub {
	if doc == nil {
		doc = content.Defaults()
	}
	return &Hub{doc: doc.Clone(), viewers: map[PageID]map[*Viewer]struct{}{}}
}

// Publish stores doc as current and pushes fresh view-models to every viewer.
func (h *Hub) Publish(doc *content.Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doc = doc.Clone()
	for page, set := range h.viewers {
		if len(set) == 0 {
			continue
		}
		msg, err := h.encodeLocked(page)
		if err != nil {
			logger.Errorf("live: encode %s: %v", page, err)
			continue
		}
		for v := range set {
			select {
			case v.send <- msg:
			default:
				logger.Debugf("live: viewer of %s is behind; dropping update", page)
			}
		}
	}
}

// Subscribe registers a viewer of page. The first message on its channel is
// the current view-model.
func (h *Hub) Subscribe(page PageID) (*Viewer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, err := h.encodeLocked(page)
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, 4)
	v := &Viewer{page: page, C: ch, send: ch}
	v.send <- msg
	if h.viewers[page] == nil {
		h.viewers[page] = map[*Viewer]struct{}{}
	}
	h.viewers[page][v] = struct{}{}
	metrics.LiveViewers.WithLabelValues(string(page)).Inc()
	return v, nil
}

// Unsubscribe removes the viewer and closes its channel.
func (h *Hub) Unsubscribe(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.viewers[v.page]
	if _, ok := set[v]; !ok {
		return
	}
	delete(set, v)
	close(v.send)
	metrics.LiveViewers.WithLabelValues(string(v.page)).Dec()
}

// Viewers counts connected viewers of page.
func (h *Hub) Viewers(page PageID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers[page])
}

// Current projects page from the latest published document.
func (h *Hub) Current(page PageID) (interface{}, error) {
	h.mu.Lock()
	doc := h.doc.Clone()
	h.mu.Unlock()
	return Project(doc, page)
}

func (h *Hub) encodeLocked(page PageID) ([]byte, error) {
	model, err := Project(h.doc, page)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Update{Page: page, Model: model})
}
