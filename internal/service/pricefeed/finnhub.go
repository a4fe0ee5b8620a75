package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	applogger "Corexia/pkg/logger"
)

// barDays is how many recent sessions of trade-built bars are kept per symbol.
const barDays = 5

// FinnhubFeed keeps the last traded price per symbol from the Finnhub trade
// stream and folds the trades into daily bars. Prices mark open paper
// positions; bars feed the daily candle ingest.
type FinnhubFeed struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	loc            *time.Location
	log            *applogger.Logger

	mu     sync.RWMutex
	prices map[string]quote
	bars   map[string]map[time.Time]*dayBar
}

type quote struct {
	price float64
	at    time.Time
}

type dayBar struct {
	candle      models.Candle
	first, last time.Time
}

var (
	_ service.PriceFeed    = (*FinnhubFeed)(nil)
	_ domrepo.CandleSource = (*FinnhubFeed)(nil)
)

type FeedOption func(*FinnhubFeed)

// WithSessionLocation sets the zone whose calendar date names a trade's session. Default UTC.
func WithSessionLocation(loc *time.Location) FeedOption {
	return func(f *FinnhubFeed) { f.loc = loc }
}

func NewFinnhubFeed(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger, opts ...FeedOption) *FinnhubFeed {
	f := &FinnhubFeed{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		loc:            time.UTC,
		log:            l,
		prices:         make(map[string]quote),
		bars:           make(map[string]map[time.Time]*dayBar),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// LastPrice returns the most recent trade price seen for symbol.
func (f *FinnhubFeed) LastPrice(symbol string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.prices[symbol]
	return q.price, ok
}

// Run streams trades until ctx is done, reconnecting after every failure.
func (f *FinnhubFeed) Run(ctx context.Context) {
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return
		}
		f.log.Warn("price feed disconnected", applogger.Error(err), applogger.Duration("retry_in", f.reconnectDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *FinnhubFeed) dialURL() (string, error) {
	u, err := url.Parse(f.websocketURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("token", f.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session runs one connection: dial, subscribe, then read until error.
func (f *FinnhubFeed) session(ctx context.Context) error {
	u, err := f.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	defer conn.Close()

	for _, s := range f.symbols {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	f.log.Info("price feed connected", applogger.Strings("symbols", f.symbols))

	done := make(chan struct{})
	defer close(done)
	var wmu sync.Mutex
	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				wmu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				wmu.Unlock()
				_ = conn.Close()
				return
			case <-ticker.C:
				wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("finnhub read: %w", err)
		}
		f.apply(b)
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// apply records the newest price per symbol from one frame; non-trade frames are ignored.
func (f *FinnhubFeed) apply(b []byte) {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range m.Data {
		if d.S == "" || d.P <= 0 {
			continue
		}
		at := time.UnixMilli(d.T)
		f.addToBar(d, at)
		if cur, ok := f.prices[d.S]; ok && at.Before(cur.at) {
			continue
		}
		f.prices[d.S] = quote{price: d.P, at: at}
	}
}

// addToBar folds one trade into its session bar. Trades may arrive out of
// order; open and close follow trade time, not arrival. Caller holds mu.
func (f *FinnhubFeed) addToBar(d fhTrade, at time.Time) {
	day := models.DateKey(at.In(f.loc))
	days, ok := f.bars[d.S]
	if !ok {
		days = make(map[time.Time]*dayBar)
		f.bars[d.S] = days
	}
	b, ok := days[day]
	if !ok {
		days[day] = &dayBar{
			candle: models.Candle{Bucket: day, Symbol: d.S, Open: d.P, High: d.P, Low: d.P, Close: d.P, Volume: d.V},
			first:  at,
			last:   at,
		}
		cutoff := day.AddDate(0, 0, -barDays)
		for k := range days {
			if k.Before(cutoff) {
				delete(days, k)
			}
		}
		return
	}
	c := &b.candle
	c.High = max(c.High, d.P)
	c.Low = min(c.Low, d.P)
	c.Volume += d.V
	if at.Before(b.first) {
		b.first, c.Open = at, d.P
	}
	if !at.Before(b.last) {
		b.last, c.Close = at, d.P
	}
}

// DailyCandles returns the bars built from trades seen for symbol with a
// session date in [from, to], oldest first. Sessions the feed was not
// connected for are absent.
func (f *FinnhubFeed) DailyCandles(_ context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	lo, hi := models.DateKey(from), models.DateKey(to)
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Candle, 0, len(f.bars[symbol]))
	for day, b := range f.bars[symbol] {
		if !day.Before(lo) && !day.After(hi) {
			out = append(out, b.candle)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out, nil
}

// Static is a fixed price table, used when the live feed is disabled.
type Static map[string]float64

func (s Static) LastPrice(symbol string) (float64, bool) {
	p, ok := s[symbol]
	return p, ok
}
