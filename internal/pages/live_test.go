package pages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, v *Viewer) Update {
	t.Helper()
	select {
	case msg, ok := <-v.C:
		require.True(t, ok, "viewer channel closed")
		var u struct {
			Page  PageID          `json:"page"`
			Model json.RawMessage `json:"model"`
		}
		require.NoError(t, json.Unmarshal(msg, &u))
		var model map[string]interface{}
		require.NoError(t, json.Unmarshal(u.Model, &model))
		return Update{Page: u.Page, Model: model}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
	return Update{}
}

func siteName(u Update) interface{} {
	return u.Model.(map[string]interface{})["common"].(map[string]interface{})["siteName"]
}

func TestHubSendsInitialAndUpdates(t *testing.T) {
	doc := sampleDoc()
	hub := NewHub(doc)

	v, err := hub.Subscribe(PageAbout)
	require.NoError(t, err)
	first := receive(t, v)
	assert.Equal(t, PageAbout, first.Page)
	assert.Equal(t, "サロン未来", siteName(first))

	doc.Settings.SiteName = "Salon Next"
	hub.Publish(doc)
	assert.Equal(t, "Salon Next", siteName(receive(t, v)))

	assert.Equal(t, 1, hub.Viewers(PageAbout))
	hub.Unsubscribe(v)
	hub.Unsubscribe(v)
	assert.Equal(t, 0, hub.Viewers(PageAbout))
	_, ok := <-v.C
	assert.False(t, ok)
}

func TestHubSlowViewerDoesNotBlock(t *testing.T) {
	doc := sampleDoc()
	hub := NewHub(doc)
	v, err := hub.Subscribe(PageHome)
	require.NoError(t, err)
	defer hub.Unsubscribe(v)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			hub.Publish(doc)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow viewer")
	}
}

func TestHubRejectsUnknownPage(t *testing.T) {
	_, err := NewHub(nil).Subscribe("blog")
	assert.Error(t, err)
}

func TestHubCurrent(t *testing.T) {
	hub := NewHub(sampleDoc())
	model, err := hub.Current(PageServiceList)
	require.NoError(t, err)
	assert.Len(t, model.(ServiceListPage).Groups, 2)
}
