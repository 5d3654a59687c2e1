package driver

import (
	"sync"

	apperrors "github.com/KB1RD/matrix-widget-api/internal/errors"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

// ErrObserverAborted is returned by Push once the receiver aborted the channel.
var ErrObserverAborted = apperrors.New("openid observer aborted")

// OpenIDChannel is an OpenIDObserver backed by a Go channel. Every push is
// checked against the handshake ordering; the channel closes right after the
// terminal update so receivers can range over Updates.
//
// A push that breaks the ordering is not delivered. The first such violation
// is kept and reported by Err, letting the receiving side fail the whole
// exchange even when the delivered updates looked valid.
type OpenIDChannel struct {
	mu        sync.Mutex
	seq       domain.OpenIDSequence
	updates   chan domain.OpenIDUpdate
	done      chan struct{}
	violated  chan struct{}
	closed    bool
	violation error
}

var _ OpenIDObserver = (*OpenIDChannel)(nil)

// NewOpenIDChannel creates a channel. A legal handshake never pushes more than
// two updates, so the buffer always fits it and Push never blocks.
func NewOpenIDChannel() *OpenIDChannel {
	return &OpenIDChannel{
		updates:  make(chan domain.OpenIDUpdate, 2),
		done:     make(chan struct{}),
		violated: make(chan struct{}),
	}
}

// Push delivers update when it is legal at this point of the handshake.
func (c *OpenIDChannel) Push(update domain.OpenIDUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed && !c.seq.Complete() {
		return ErrObserverAborted
	}

	if err := c.seq.Accept(update); err != nil {
		if c.violation == nil {
			c.violation = err
			close(c.violated)
		}
		return err
	}

	c.updates <- update

	if update.State.IsTerminal() {
		c.closeLocked()
	}
	return nil
}

// Abort closes the channel without a terminal update, e.g. when the receiver
// stops listening. Later pushes fail with ErrObserverAborted.
func (c *OpenIDChannel) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *OpenIDChannel) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.updates)
	close(c.done)
}

// Updates returns the receive side. It is closed after the terminal update.
func (c *OpenIDChannel) Updates() <-chan domain.OpenIDUpdate {
	return c.updates
}

// Done is closed once the handshake finished or was aborted.
func (c *OpenIDChannel) Done() <-chan struct{} {
	return c.done
}

// Violated is closed when the first ordering violation is recorded.
func (c *OpenIDChannel) Violated() <-chan struct{} {
	return c.violated
}

// Err returns the first ordering violation seen, or nil.
func (c *OpenIDChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violation
}
