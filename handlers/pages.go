package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/salonmirai/sitesync/internal/pages"
	"github.com/salonmirai/sitesync/pkg/logger"
)

// pagePaths maps public URLs to pages. The .html forms are the addresses of
// the original static site.
var pagePaths = map[string]pages.PageID{
	"/":              pages.PageHome,
	"/index.html":    pages.PageHome,
	"/campaign":      pages.PageCampaignList,
	"/campaign.html": pages.PageCampaignList,
	"/staff":         pages.PageStaffList,
	"/staff.html":    pages.PageStaffList,
	"/services":      pages.PageServiceList,
	"/services.html": pages.PageServiceList,
	"/about":         pages.PageAbout,
	"/about.html":    pages.PageAbout,
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// PagesHandler renders the public site from the live hub.
type PagesHandler struct {
	hub      *pages.Hub
	upgrader websocket.Upgrader
}

func NewPagesHandler(hub *pages.Hub) *PagesHandler {
	return &PagesHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Register installs the HTML templates and the public routes on r.
func (h *PagesHandler) Register(r *gin.Engine) {
	r.SetHTMLTemplate(pages.Templates())
	for path, page := range pagePaths {
		page := page
		r.GET(path, func(c *gin.Context) { h.render(c, page) })
	}
	r.GET("/api/pages/:page", h.Model)
	r.GET("/ws/pages/:page", h.Live)
}

func (h *PagesHandler) render(c *gin.Context, page pages.PageID) {
	name, _ := pages.TemplateName(page)
	model, err := h.hub.Current(page)
	if err != nil {
		c.String(http.StatusInternalServerError, "page unavailable")
		return
	}
	c.HTML(http.StatusOK, name, model)
}

func pageParam(c *gin.Context) (pages.PageID, bool) {
	page := pages.PageID(c.Param("page"))
	if _, ok := pages.TemplateName(page); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown page"})
		return "", false
	}
	return page, true
}

// Model returns the JSON view-model of a page.
func (h *PagesHandler) Model(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	model, err := h.hub.Current(page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model)
}

// Live streams the page's view-model: once on connect, then after every
// content change.
func (h *PagesHandler) Live(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debugf("live: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	viewer, err := h.hub.Subscribe(page)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		return
	}
	defer h.hub.Unsubscribe(viewer)

	// the reader only watches for the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-viewer.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
