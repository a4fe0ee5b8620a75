package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
)

// RedisAgentState stores each agent's book under its own key space:
//
//	<prefix>:agent:<id>:positions  hash   position id -> JSON position
//	<prefix>:agent:<id>:closed     list   position ids, most recent close first
//	<prefix>:agent:<id>:perf       hash   YYYY-MM-DD -> JSON daily performance
type RedisAgentState struct {
	cli    redis.UniversalClient
	prefix string
}

var _ domrepo.AgentStateStore = (*RedisAgentState)(nil)

func NewRedisAgentState(cli redis.UniversalClient, prefix string) *RedisAgentState {
	return &RedisAgentState{cli: cli, prefix: prefix}
}

func (s *RedisAgentState) key(agentID, kind string) string {
	return fmt.Sprintf("%s:agent:%s:%s", s.prefix, agentID, kind)
}

func (s *RedisAgentState) RuntimeState(ctx context.Context, agentID string, today time.Time, recentClosed int) (*models.RuntimeState, error) {
	st := &models.RuntimeState{}

	positions, err := s.Positions(ctx, agentID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
		if p.Open() {
			st.OpenPositions = append(st.OpenPositions, p)
		}
	}

	if recentClosed > 0 {
		ids, err := s.cli.LRange(ctx, s.key(agentID, "closed"), 0, int64(recentClosed-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("recent closed: %w", err)
		}
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				st.RecentClosed = append(st.RecentClosed, p)
			}
		}
	}

	raw, err := s.cli.HGetAll(ctx, s.key(agentID, "perf")).Result()
	if err != nil {
		return nil, fmt.Errorf("load performance: %w", err)
	}
	rows := make(map[string]models.DailyPerformance, len(raw))
	for k, v := range raw {
		var p models.DailyPerformance
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("decode performance %s: %w", k, err)
		}
		rows[k] = p
	}
	st.Today, st.Previous = splitPerformance(rows, today)
	return st, nil
}

func (s *RedisAgentState) OpenPosition(ctx context.Context, pos models.Position) error {
	b, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	ok, err := s.cli.HSetNX(ctx, s.key(pos.AgentID, "positions"), pos.ID, b).Result()
	if err != nil {
		return fmt.Errorf("store position: %w", err)
	}
	if !ok {
		return fmt.Errorf("position %s already exists", pos.ID)
	}
	return nil
}

func (s *RedisAgentState) ClosePosition(ctx context.Context, agentID, positionID string, exitPrice float64, closedAt time.Time) (*models.Position, error) {
	posKey := s.key(agentID, "positions")
	raw, err := s.cli.HGet(ctx, posKey, positionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("close position %s: %w", positionID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	var p models.Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	if !p.Open() {
		return nil, fmt.Errorf("close position %s: %w", positionID, models.ErrPositionClosed)
	}

	closed := p.Closed(exitPrice, closedAt)
	b, err := json.Marshal(closed)
	if err != nil {
		return nil, fmt.Errorf("encode position: %w", err)
	}
	_, err = s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, posKey, positionID, b)
		pipe.LPush(ctx, s.key(agentID, "closed"), positionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store closed position: %w", err)
	}
	return &closed, nil
}

// Positions returns every position the agent ever held, ordered by open time.
func (s *RedisAgentState) Positions(ctx context.Context, agentID string) ([]models.Position, error) {
	raw, err := s.cli.HGetAll(ctx, s.key(agentID, "positions")).Result()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	out := make([]models.Position, 0, len(raw))
	for id, v := range raw {
		var p models.Position
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("decode position %s: %w", id, err)
		}
		out = append(out, p)
	}
	sortByOpened(out)
	return out, nil
}

func (s *RedisAgentState) UpsertPerformance(ctx context.Context, perf models.DailyPerformance) error {
	b, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("encode performance: %w", err)
	}
	if err := s.cli.HSet(ctx, s.key(perf.AgentID, "perf"), dayKey(perf.Date), b).Err(); err != nil {
		return fmt.Errorf("store performance: %w", err)
	}
	return nil
}
