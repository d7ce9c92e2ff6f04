package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/pages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPagesRouter(t *testing.T) (*gin.Engine, *pages.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := pages.NewHub(content.Defaults())
	g := gin.New()
	NewPagesHandler(hub).Register(g)
	return g, hub
}

func TestPages_RenderHTML(t *testing.T) {
	g, _ := newPagesRouter(t)
	siteName := content.Defaults().Settings.SiteName
	for path, page := range pagePaths {
		w := httptest.NewRecorder()
		g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), `data-page="`+string(page)+`"`, path)
		assert.Contains(t, w.Body.String(), siteName)
	}
}

func TestPages_ModelJSON(t *testing.T) {
	g, _ := newPagesRouter(t)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pages/serviceList", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var vm pages.ServiceListPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vm))
	assert.NotEmpty(t, vm.Groups)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pages/blog", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPages_LiveStream(t *testing.T) {
	g, hub := newPagesRouter(t)
	srv := httptest.NewServer(g)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/pages/about"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &out))
		return out
	}

	first := read()
	assert.Equal(t, "about", first["page"])

	require.Eventually(t, func() bool { return hub.Viewers(pages.PageAbout) == 1 }, time.Second, 10*time.Millisecond)

	doc := content.Defaults()
	doc.Settings.SiteName = "ライブ更新"
	hub.Publish(doc)
	next := read()
	model := next["model"].(map[string]interface{})
	assert.Equal(t, "ライブ更新", model["siteName"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Viewers(pages.PageAbout) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPages_LiveUnknownPage(t *testing.T) {
	g, _ := newPagesRouter(t)
	srv := httptest.NewServer(g)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/pages/blog", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
