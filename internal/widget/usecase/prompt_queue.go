package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
)

type pendingPrompt struct {
	prompt domain.Prompt
	answer chan domain.PromptResolution
}

// PromptQueue is an in-memory Prompter. Requests wait until the host UI resolves
// them through PromptUseCase or their context ends.
type PromptQueue struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingPrompt
	now     func() time.Time
}

var (
	_ Prompter      = (*PromptQueue)(nil)
	_ PromptUseCase = (*PromptQueue)(nil)
)

// NewPromptQueue creates an empty PromptQueue.
func NewPromptQueue() *PromptQueue {
	return &PromptQueue{
		pending: make(map[uuid.UUID]*pendingPrompt),
		now:     time.Now,
	}
}

// ConfirmCapabilities waits for the user to pick which of requested to approve.
// Answers outside requested are dropped.
func (q *PromptQueue) ConfirmCapabilities(
	ctx context.Context,
	widget domain.Widget,
	requested domain.CapabilitySet,
) (domain.CapabilitySet, error) {
	resolution, err := q.wait(ctx, domain.CapabilitiesPromptKind, widget, requested.Clone())
	if err != nil {
		return nil, err
	}
	if !resolution.Approved {
		return domain.NewCapabilitySet(), nil
	}
	return resolution.Capabilities.Intersect(requested), nil
}

// ConfirmOpenID waits for the user to decide whether the widget may learn who
// they are.
func (q *PromptQueue) ConfirmOpenID(ctx context.Context, widget domain.Widget) (domain.OpenIDDecision, error) {
	resolution, err := q.wait(ctx, domain.OpenIDPromptKind, widget, nil)
	if err != nil {
		return domain.OpenIDDecision{}, err
	}
	return domain.OpenIDDecision{
		Allowed:  resolution.Approved,
		Remember: resolution.Remember,
	}, nil
}

func (q *PromptQueue) wait(
	ctx context.Context,
	kind domain.PromptKind,
	widget domain.Widget,
	requested domain.CapabilitySet,
) (domain.PromptResolution, error) {
	if err := ctx.Err(); err != nil {
		return domain.PromptResolution{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.PromptResolution{}, err
	}

	now := q.now().UTC()
	p := &pendingPrompt{
		prompt: domain.Prompt{
			ID:        id,
			Kind:      kind,
			Widget:    widget,
			Requested: requested,
			CreatedAt: now,
		},
		answer: make(chan domain.PromptResolution, 1),
	}
	if deadline, ok := ctx.Deadline(); ok {
		p.prompt.ExpiresAt = deadline.UTC()
	}

	q.mu.Lock()
	q.pending[id] = p
	q.mu.Unlock()

	select {
	case resolution := <-p.answer:
		return resolution, nil
	case <-ctx.Done():
		q.mu.Lock()
		_, stillPending := q.pending[id]
		if stillPending {
			delete(q.pending, id)
		}
		q.mu.Unlock()

		if !stillPending {
			// Resolve took the prompt first and its answer is on the way
			return <-p.answer, nil
		}
		return domain.PromptResolution{}, ctx.Err()
	}
}

// List returns the open prompts, oldest first.
func (q *PromptQueue) List(ctx context.Context) []domain.Prompt {
	q.mu.Lock()
	prompts := make([]domain.Prompt, 0, len(q.pending))
	for _, p := range q.pending {
		prompts = append(prompts, p.prompt)
	}
	q.mu.Unlock()

	sort.Slice(prompts, func(i, j int) bool {
		if prompts[i].CreatedAt.Equal(prompts[j].CreatedAt) {
			return prompts[i].ID.String() < prompts[j].ID.String()
		}
		return prompts[i].CreatedAt.Before(prompts[j].CreatedAt)
	})
	return prompts
}

// Resolve hands resolution to the waiting requester.
func (q *PromptQueue) Resolve(ctx context.Context, promptID uuid.UUID, resolution domain.PromptResolution) error {
	p, ok := q.take(promptID)
	if !ok {
		return domain.ErrPromptNotFound
	}
	p.deliver(resolution)
	return nil
}

// take removes the prompt so no other caller can resolve or expire it.
func (q *PromptQueue) take(promptID uuid.UUID) (*pendingPrompt, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[promptID]
	if ok {
		delete(q.pending, promptID)
	}
	return p, ok
}

func (p *pendingPrompt) deliver(resolution domain.PromptResolution) {
	if resolution.Capabilities == nil {
		resolution.Capabilities = domain.NewCapabilitySet()
	}
	p.answer <- resolution
}
