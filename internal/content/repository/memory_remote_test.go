package repository

import (
	"context"
	"testing"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"github.com/stretchr/testify/require"
)

func TestMemoryRemote_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()

	_, err := r.Get(ctx)
	require.ErrorIs(t, err, ErrNoRemoteDocument)

	doc := content.Defaults()
	v, err := r.CompareAndSet(ctx, doc, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	// a second writer that still believes the store is empty loses
	_, err = r.CompareAndSet(ctx, doc, 0)
	require.ErrorIs(t, err, content.ErrConflict)

	doc.Settings.SiteName = "サロン未来 渋谷"
	v, err = r.CompareAndSet(ctx, doc, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	snap, err := r.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), snap.Version)
	require.Equal(t, "サロン未来 渋谷", snap.Doc.Settings.SiteName)

	// the returned document is a copy
	snap.Doc.Settings.SiteName = "x"
	again, err := r.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "サロン未来 渋谷", again.Doc.Settings.SiteName)
}

func TestMemoryRemote_Unreachable(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()
	r.SetReachable(false)

	require.ErrorIs(t, r.Ping(ctx), content.ErrRemoteUnavailable)
	_, err := r.Get(ctx)
	require.ErrorIs(t, err, content.ErrRemoteUnavailable)
	_, err = r.CompareAndSet(ctx, content.Defaults(), 0)
	require.ErrorIs(t, err, content.ErrRemoteUnavailable)
	require.ErrorIs(t, r.AppendAudit(ctx, AuditRecord{Action: "data_update"}), content.ErrRemoteUnavailable)
	_, err = r.Watch(ctx)
	require.ErrorIs(t, err, content.ErrRemoteUnavailable)
}

func TestMemoryRemote_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewMemoryRemote()

	ch, err := r.Watch(ctx)
	require.NoError(t, err)

	doc := content.Defaults()
	doc.News = doc.News[:1]
	_, err = r.Put(doc)
	require.NoError(t, err)

	select {
	case snap := <-ch:
		require.Equal(t, int64(1), snap.Version)
		require.Len(t, snap.Doc.News, 1)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	// losing the connection ends the stream
	r.SetReachable(false)
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}

func TestMemoryRemote_Audit(t *testing.T) {
	r := NewMemoryRemote()
	require.NoError(t, r.AppendAudit(context.Background(), AuditRecord{ID: "1", Action: "data_update", User: "salon_admin", Success: true}))
	got := r.Audit()
	require.Len(t, got, 1)
	require.Equal(t, "salon_admin", got[0].User)
}

func TestMemoryRemote_StoredVersionAndRawRecords(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRemote()

	_, err := r.StoredVersion(ctx)
	require.ErrorIs(t, err, ErrNoRemoteDocument)

	require.Equal(t, int64(1), r.PutRaw([]byte(`{"campaigns":[]}`)))
	v, err := r.StoredVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	_, err = r.Get(ctx)
	var ve *content.ValidationError
	require.ErrorAs(t, err, &ve)

	r.SetReachable(false)
	_, err = r.StoredVersion(ctx)
	require.ErrorIs(t, err, content.ErrRemoteUnavailable)
}
