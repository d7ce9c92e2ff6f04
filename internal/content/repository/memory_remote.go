package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/salonmirai/sitesync/internal/content"
)

// MemoryRemote is an in-process Remote used by tests and local development.
// Documents are kept encoded so callers never share memory with the store.
type MemoryRemote struct {
	mu        sync.Mutex
	raw       []byte
	version   int64
	reachable bool
	watchers  map[*memoryWatcher]struct{}
	audit     []AuditRecord
}

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{reachable: true, watchers: make(map[*memoryWatcher]struct{})}
}

type memoryWatcher struct {
	ch   chan Snapshot
	once sync.Once
}

func (w *memoryWatcher) close() { w.once.Do(func() { close(w.ch) }) }

// SetReachable simulates losing or regaining the connection.
// Losing it ends every open watch stream.
func (m *MemoryRemote) SetReachable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reachable = ok
	if ok {
		return
	}
	for w := range m.watchers {
		delete(m.watchers, w)
		w.close()
	}
}

func (m *MemoryRemote) unavailable() error {
	return fmt.Errorf("memory remote: %w", content.ErrRemoteUnavailable)
}

func (m *MemoryRemote) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return m.unavailable()
	}
	return nil
}

func (m *MemoryRemote) Get(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return nil, m.unavailable()
	}
	if m.raw == nil {
		return nil, ErrNoRemoteDocument
	}
	return m.snapshotLocked()
}

func (m *MemoryRemote) StoredVersion(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return 0, m.unavailable()
	}
	if m.raw == nil {
		return 0, ErrNoRemoteDocument
	}
	return m.version, nil
}

func (m *MemoryRemote) snapshotLocked() (*Snapshot, error) {
	doc, err := content.Decode(m.raw)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Doc: doc, Version: m.version}, nil
}

func (m *MemoryRemote) CompareAndSet(_ context.Context, doc *content.Document, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return 0, m.unavailable()
	}
	if expected != m.version {
		return 0, fmt.Errorf("have version %d, expected %d: %w", m.version, expected, content.ErrConflict)
	}
	if err := m.storeLocked(doc); err != nil {
		return 0, err
	}
	return m.version, nil
}

// PutRaw stores bytes as they are, as a hand-edited or damaged record would be.
// Watchers are not notified.
func (m *MemoryRemote) PutRaw(raw []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append([]byte(nil), raw...)
	m.version++
	return m.version
}

// Put writes doc unconditionally, as another admin's browser would.
func (m *MemoryRemote) Put(doc *content.Document) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storeLocked(doc); err != nil {
		return 0, err
	}
	return m.version, nil
}

func (m *MemoryRemote) storeLocked(doc *content.Document) error {
	raw, err := content.Encode(doc)
	if err != nil {
		return err
	}
	m.raw = raw
	m.version++
	snap, err := m.snapshotLocked()
	if err != nil {
		return err
	}
	for w := range m.watchers {
		select {
		case w.ch <- Snapshot{Doc: snap.Doc.Clone(), Version: snap.Version}:
		default:
		}
	}
	return nil
}

func (m *MemoryRemote) Watch(ctx context.Context) (<-chan Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return nil, m.unavailable()
	}
	w := &memoryWatcher{ch: make(chan Snapshot, 16)}
	m.watchers[w] = struct{}{}
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()
		w.close()
	}()
	return w.ch, nil
}

func (m *MemoryRemote) AppendAudit(_ context.Context, rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.reachable {
		return m.unavailable()
	}
	m.audit = append(m.audit, rec)
	return nil
}

// Audit returns a copy of the audit log.
func (m *MemoryRemote) Audit() []AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditRecord(nil), m.audit...)
}

// Version returns the current stored version.
func (m *MemoryRemote) Version() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}
