package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	applogger "Corexia/pkg/logger"
)

// ErrNoMarkPrice is returned when a close names no price and the feed has none.
var ErrNoMarkPrice = errors.New("no price to close at")

// PositionCloser closes paper positions on request and refreshes the
// agent's performance row.
type PositionCloser struct {
	broker service.Broker
	state  domrepo.AgentStateStore
	perf   *PerformanceUpdater
	feed   service.PriceFeed
	log    *applogger.Logger
	now    func() time.Time
}

// NewPositionCloser builds a closer. feed may be nil, in which case every
// close must carry its own price.
func NewPositionCloser(b service.Broker, state domrepo.AgentStateStore, perf *PerformanceUpdater, feed service.PriceFeed, l *applogger.Logger) *PositionCloser {
	return &PositionCloser{
		broker: b,
		state:  state,
		perf:   perf,
		feed:   feed,
		log:    l,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ClosePosition closes positionID at price, or at the feed's last price for
// the position's symbol when price is zero.
func (c *PositionCloser) ClosePosition(ctx context.Context, agentID, positionID string, price float64) (*models.Position, error) {
	if price <= 0 {
		p, err := c.markPrice(ctx, agentID, positionID)
		if err != nil {
			return nil, err
		}
		price = p
	}

	now := c.now()
	pos, err := c.broker.Close(ctx, agentID, positionID, price, now)
	if err != nil {
		return nil, err
	}
	if _, err := c.perf.Update(ctx, agentID, now); err != nil {
		c.log.Warn("performance update after close failed",
			applogger.String("agent", agentID),
			applogger.Error(err),
		)
	}
	c.log.Info("position closed",
		applogger.String("agent", agentID),
		applogger.String("position", positionID),
		applogger.Float64("price", price),
	)
	return pos, nil
}

func (c *PositionCloser) markPrice(ctx context.Context, agentID, positionID string) (float64, error) {
	positions, err := c.state.Positions(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("load positions %s: %w", agentID, err)
	}
	for _, p := range positions {
		if p.ID != positionID {
			continue
		}
		if !p.Open() {
			return 0, fmt.Errorf("close position %s: %w", positionID, models.ErrPositionClosed)
		}
		if c.feed == nil {
			return 0, ErrNoMarkPrice
		}
		last, ok := c.feed.LastPrice(p.Symbol)
		if !ok || last <= 0 {
			return 0, fmt.Errorf("%w for %s", ErrNoMarkPrice, p.Symbol)
		}
		return last, nil
	}
	return 0, fmt.Errorf("close position %s: %w", positionID, domrepo.ErrNotFound)
}
