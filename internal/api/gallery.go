package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/gallery"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.deps.Gallery.List(r.Context(), uidFrom(r.Context()), gallery.ParseOrder(q.Get("order")), parsePage(q.Get("page")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	deleted, err := s.deps.Gallery.DeleteGroup(r.Context(), uidFrom(r.Context()), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// streamView is what a client sends to change the order or page of its stream.
type streamView struct {
	Order string `json:"order"`
	Page  int    `json:"page"`
}

// streamState renders the latest groups for the client's current view. Only
// the newest page is kept; a slow client skips intermediate states.
type streamState struct {
	mu     sync.Mutex
	groups []models.PromptGroup
	ready  bool
	order  gallery.Order
	page   int
	size   int
	pages  chan gallery.Page
}

func (st *streamState) setGroups(groups []models.PromptGroup) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.groups = groups
	st.ready = true
	st.pushLocked()
}

func (st *streamState) setView(v streamView) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if v.Order != "" {
		st.order = gallery.ParseOrder(v.Order)
	}
	if v.Page > 0 {
		st.page = v.Page
	}
	if st.ready {
		st.pushLocked()
	}
}

func (st *streamState) pushLocked() {
	sorted := append([]models.PromptGroup(nil), st.groups...)
	gallery.Sort(sorted, st.order)
	page := gallery.Paginate(sorted, st.page, st.size)
	select {
	case <-st.pages:
	default:
	}
	st.pages <- page
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.origins[origin]
}

// handleGalleryStream pushes the grouped gallery over a websocket every time
// either of the user's collections changes.
func (s *Server) handleGalleryStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watcher == nil {
		s.writeError(w, apperror.Unavailable("live gallery is disabled"))
		return
	}
	uid := uidFrom(r.Context())
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("gallery stream upgrade", "user", uid, "err", err)
		return
	}
	defer conn.Close()

	metrics.GalleryStreams.Inc()
	defer metrics.GalleryStreams.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	q := r.URL.Query()
	st := &streamState{
		order: gallery.ParseOrder(q.Get("order")),
		page:  parsePage(q.Get("page")),
		size:  s.deps.Gallery.PageSize(),
		pages: make(chan gallery.Page, 1),
	}
	stop, err := s.deps.Watcher.Watch(ctx, uid, st.setGroups)
	if err != nil {
		s.log.Error("gallery stream watch", "user", uid, "err", err)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "gallery unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	defer stop()

	go func() {
		defer cancel()
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var view streamView
			if err := json.Unmarshal(data, &view); err != nil {
				continue
			}
			st.setView(view)
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case page := <-st.pages:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(page); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
