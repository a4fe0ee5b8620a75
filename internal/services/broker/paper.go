package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
)

// PaperBroker fills simulated orders at the supplied price and records them
// in the agent's own state. It holds no positions itself.
type PaperBroker struct {
	store domrepo.AgentStateStore
	newID func() string
}

var _ service.Broker = (*PaperBroker)(nil)

type Option func(*PaperBroker)

// WithIDGenerator replaces the uuid generator for position IDs.
func WithIDGenerator(f func() string) Option {
	return func(b *PaperBroker) { b.newID = f }
}

func NewPaperBroker(store domrepo.AgentStateStore, opts ...Option) *PaperBroker {
	b := &PaperBroker{store: store, newID: uuid.NewString}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *PaperBroker) Execute(ctx context.Context, agentID string, d models.Decision, price float64, at time.Time) (models.Position, error) {
	if d.Action != models.ActionLong && d.Action != models.ActionShort {
		return models.Position{}, fmt.Errorf("execute %s: unsupported action %q", agentID, d.Action)
	}
	if price <= 0 {
		return models.Position{}, fmt.Errorf("execute %s: no price for %s", agentID, d.Symbol)
	}

	pos := models.Position{
		ID:         b.newID(),
		AgentID:    agentID,
		Symbol:     d.Symbol,
		Side:       d.Action,
		SizePct:    d.SizePct,
		EntryPrice: price,
		Rationale:  d.Rationale,
		OpenedAt:   at,
	}
	if err := b.store.OpenPosition(ctx, pos); err != nil {
		return models.Position{}, fmt.Errorf("open position: %w", err)
	}
	return pos, nil
}

func (b *PaperBroker) Close(ctx context.Context, agentID, positionID string, price float64, at time.Time) (*models.Position, error) {
	if price <= 0 {
		return nil, fmt.Errorf("close %s: invalid price %v", positionID, price)
	}
	pos, err := b.store.ClosePosition(ctx, agentID, positionID, price, at)
	if err != nil {
		return nil, fmt.Errorf("close position: %w", err)
	}
	return pos, nil
}
