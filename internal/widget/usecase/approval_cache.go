package usecase

import (
	"sync"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

type approvalKey struct {
	widgetID string
	userID   string
	origin   string
}

type approvalEntry struct {
	allowed   bool
	expiresAt time.Time
}

// memoryApprovalCache keeps decisions in process memory; they are lost on restart.
type memoryApprovalCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[approvalKey]approvalEntry
}

func keyFor(widget domain.Widget) approvalKey {
	return approvalKey{widgetID: widget.ID, userID: widget.UserID, origin: widget.Origin}
}

func (m *memoryApprovalCache) Get(widget domain.Widget) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(widget)
	entry, ok := m.entries[key]
	if !ok {
		return false, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return false, false
	}
	return entry.allowed, true
}

func (m *memoryApprovalCache) Put(widget domain.Widget, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[keyFor(widget)] = approvalEntry{
		allowed:   allowed,
		expiresAt: m.now().Add(m.ttl),
	}
}

// NewMemoryApprovalCache creates an ApprovalCache whose entries expire after ttl.
// Decisions are keyed by widget ID, user and origin.
func NewMemoryApprovalCache(ttl time.Duration) ApprovalCache {
	return &memoryApprovalCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[approvalKey]approvalEntry),
	}
}
