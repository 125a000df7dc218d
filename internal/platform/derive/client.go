// Package derive polls the Derive (formerly Lyra) public REST API for
// option tickers and feeds normalized quotes into the pipeline entry point.
package derive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/platform"
)

// Config holds polling parameters.
type Config struct {
	// BaseURL of the REST API, e.g. "https://api.lyra.finance".
	BaseURL string
	// Currencies to poll.
	Currencies []string
	// PollInterval between ticker fetches.
	PollInterval time.Duration
	// ErrorRetryDelay after a failed fetch.
	ErrorRetryDelay time.Duration
}

// Client is the Derive ingestion adapter.
type Client struct {
	cfg    Config
	http   *http.Client
	sink   platform.QuoteSink
	status platform.StatusFunc
	logger *slog.Logger
	now    func() time.Time
}

// New creates the adapter. sink is required; status may be nil.
func New(cfg Config, sink platform.QuoteSink, status platform.StatusFunc, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.lyra.finance"
	}
	if len(cfg.Currencies) == 0 {
		cfg.Currencies = []string{"BTC"}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.ErrorRetryDelay <= 0 {
		cfg.ErrorRetryDelay = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		sink:   sink,
		status: status,
		logger: logger.With(slog.String("component", "derive")),
		now:    time.Now,
	}
}

// Run polls until ctx is cancelled, mirroring the Deribit adapter's
// error-status-and-retry loop.
func (c *Client) Run(ctx context.Context) error {
	c.emitStatus(domain.StatusConnected)

	for {
		if err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("poll failed", slog.String("error", err.Error()))
			c.emitStatus(domain.StatusError)
			if !sleepCtx(ctx, c.cfg.ErrorRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		c.emitStatus(domain.StatusUpdated)
		if !sleepCtx(ctx, c.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

func (c *Client) pollOnce(ctx context.Context) error {
	for _, currency := range c.cfg.Currencies {
		tickers, err := c.fetchTickers(ctx, currency)
		if err != nil {
			return err
		}
		for name, tk := range tickers {
			q, ok := c.parseTicker(name, tk)
			if !ok {
				continue
			}
			c.sink(ctx, q)
		}
	}
	return nil
}

// fetchTickers calls public/get_tickers for all option instruments of one
// currency.
func (c *Client) fetchTickers(ctx context.Context, currency string) (map[string]ticker, error) {
	body, err := json.Marshal(map[string]string{
		"instrument_type": "option",
		"currency":        currency,
	})
	if err != nil {
		return nil, fmt.Errorf("derive: marshal request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/public/get_tickers"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("derive: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("derive: fetch tickers %s: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("derive: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded tickersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("derive: decode tickers: %w", err)
	}
	return decoded.Result.Tickers, nil
}

// parseTicker normalizes one Derive ticker. Instrument names use a numeric
// expiry ("BTC-20261229-100000-C"); the expiry is rewritten into the shared
// "29DEC26" token so cross-venue instrument identities join.
func (c *Client) parseTicker(name string, tk ticker) (domain.Quote, bool) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return domain.Quote{}, false
	}
	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return domain.Quote{}, false
	}
	right := parts[3]
	if right != "C" && right != "P" {
		return domain.Quote{}, false
	}
	expiry, ok := NormalizeExpiry(parts[1])
	if !ok {
		return domain.Quote{}, false
	}

	return domain.Quote{
		SourceExchange:      domain.VenueDerive,
		UnderlyingAsset:     parts[0],
		StrikePrice:         strike,
		OptionType:          right,
		ExpirationTimestamp: expiry,
		BidPrice:            parseDecimal(tk.BestBidPrice),
		AskPrice:            parseDecimal(tk.BestAskPrice),
		BidIV:               parseIV(tk.OptionPricing.BidIV),
		AskIV:               parseIV(tk.OptionPricing.AskIV),
		Greeks:              map[string]float64{},
		Timestamp:           c.now().UnixMilli(),
	}, true
}

var months = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// NormalizeExpiry rewrites a numeric YYYYMMDD expiry into the shared
// DDMMMYY token ("20261229" -> "29DEC26"). Tokens already in that form pass
// through unchanged.
func NormalizeExpiry(token string) (string, bool) {
	if len(token) != 8 {
		// Already venue-normalized (e.g. "29DEC26").
		if token == "" {
			return "", false
		}
		return token, true
	}
	t, err := time.Parse("20060102", token)
	if err != nil {
		return token, true
	}
	return fmt.Sprintf("%d%s%02d", t.Day(), months[t.Month()-1], t.Year()%100), true
}

// parseDecimal converts Derive's stringified decimals; empty and zero
// values mean "no quote on this side".
func parseDecimal(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// parseIV converts a stringified IV fraction into a percentage.
func parseIV(s string) *float64 {
	v := parseDecimal(s)
	if v == nil {
		return nil
	}
	pct := *v * 100
	return &pct
}

func (c *Client) emitStatus(status string) {
	if c.status != nil {
		c.status(domain.VenueDerive, status)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
