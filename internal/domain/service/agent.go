package service

import (
	"context"
	"time"

	"Corexia/internal/domain/models"
)

// Agent is one rule set. The drift/friction gate and position sizing are
// shared functions in the agents package and are not part of this interface,
// so no implementation can replace them.
type Agent interface {
	Kind() models.AgentKind
	Profile() models.AgentProfile
	Interpret(mc models.MarketContext) string
	Decide(mc models.MarketContext) models.Outcome
}

// Broker fills simulated orders.
type Broker interface {
	Execute(ctx context.Context, agentID string, d models.Decision, price float64, at time.Time) (models.Position, error)
	Close(ctx context.Context, agentID, positionID string, price float64, at time.Time) (*models.Position, error)
}

// PriceFeed reports the most recent traded price for a symbol.
type PriceFeed interface {
	LastPrice(symbol string) (float64, bool)
}
