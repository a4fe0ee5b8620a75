package models

// Requests for the HTTP API. Bound and validated by pkg/http.

type RegimeRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,symbol"`
}

type SimilarityRequest struct {
	Symbol   string `query:"symbol" json:"symbol" default:"SPY" validate:"required,symbol"`
	State    string `query:"state" json:"state" validate:"omitempty,oneof=TRENDING TRANSITION RANGE STRESSED"`
	Friction string `query:"friction" json:"friction" validate:"omitempty,oneof=Low Moderate High"`
}

type RunRequest struct {
	Symbol string `json:"symbol" default:"SPY" validate:"required,symbol"`
}

type RecentDecisionsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

// ClosePositionRequest closes at Price, or at the live feed price when Price is zero.
type ClosePositionRequest struct {
	Agent      string  `param:"agent" json:"-" validate:"required"`
	PositionID string  `param:"id" json:"-" validate:"required"`
	Price      float64 `json:"price" validate:"gte=0"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	From   string `query:"from" json:"from" validate:"required,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"required,datetime=2006-01-02"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
