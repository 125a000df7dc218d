// Package deribit polls the Deribit public REST API for option book
// summaries and feeds normalized quotes into the pipeline entry point.
package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/platform"
)

// Config holds polling parameters.
type Config struct {
	// BaseURL of the REST API, e.g. "https://www.deribit.com/api/v2".
	BaseURL string
	// Currencies to poll, e.g. BTC, ETH, SOL.
	Currencies []string
	// PollInterval between summary fetches.
	PollInterval time.Duration
	// ErrorRetryDelay after a failed fetch.
	ErrorRetryDelay time.Duration
	// TopInstruments caps each fetch to the N most liquid instruments by
	// open interest, to bound downstream load.
	TopInstruments int
}

// Client is the Deribit ingestion adapter.
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
		cfg.BaseURL = "https://www.deribit.com/api/v2"
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
	if cfg.TopInstruments <= 0 {
		cfg.TopInstruments = 20
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		sink:   sink,
		status: status,
		logger: logger.With(slog.String("component", "deribit")),
		now:    time.Now,
	}
}

// Run polls until ctx is cancelled. Fetch errors emit an Error status and a
// short retry delay; they never terminate the loop.
func (c *Client) Run(ctx context.Context) error {
	c.emitStatus(domain.StatusConnected)

	for {
		if err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("poll failed", slog.String("error", err.Error()))
			c.emitStatus(domain.StatusError)
			if !sleep(ctx, c.cfg.ErrorRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		c.emitStatus(domain.StatusUpdated)
		if !sleep(ctx, c.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// pollOnce fetches and forwards the most liquid instruments per currency.
func (c *Client) pollOnce(ctx context.Context) error {
	for _, currency := range c.cfg.Currencies {
		items, err := c.fetchBookSummary(ctx, currency)
		if err != nil {
			return err
		}

		sort.Slice(items, func(i, j int) bool {
			return items[i].OpenInterest > items[j].OpenInterest
		})
		if len(items) > c.cfg.TopInstruments {
			items = items[:c.cfg.TopInstruments]
		}

		for _, item := range items {
			q, ok := c.parseSummaryItem(item)
			if !ok {
				continue
			}
			c.sink(ctx, q)
		}
	}
	return nil
}

func (c *Client) fetchBookSummary(ctx context.Context, currency string) ([]bookSummaryItem, error) {
	endpoint := fmt.Sprintf(
		"%s/public/get_book_summary_by_currency?currency=%s&kind=option",
		c.cfg.BaseURL, url.QueryEscape(currency),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("deribit: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deribit: fetch book summary %s: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deribit: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var summary bookSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("deribit: decode book summary: %w", err)
	}
	return summary.Result, nil
}

// parseSummaryItem normalizes one summary entry. Instrument names follow
// the "BTC-29DEC26-100000-C" convention; anything else is skipped.
func (c *Client) parseSummaryItem(item bookSummaryItem) (domain.Quote, bool) {
	underlying, expiry, strike, right, ok := ParseInstrumentName(item.InstrumentName)
	if !ok {
		return domain.Quote{}, false
	}

	return domain.Quote{
		SourceExchange:      domain.VenueDeribit,
		UnderlyingAsset:     underlying,
		StrikePrice:         strike,
		OptionType:          right,
		ExpirationTimestamp: expiry,
		BidPrice:            item.Bid,
		AskPrice:            item.Ask,
		BidIV:               item.BidIV,
		AskIV:               item.AskIV,
		Greeks:              map[string]float64{},
		Timestamp:           c.now().UnixMilli(),
	}, true
}

// ParseInstrumentName splits a Deribit-convention option name into its
// parts. Returns ok=false for anything that is not a four-part option name
// with a positive numeric strike.
func ParseInstrumentName(name string) (underlying, expiry string, strike float64, right string, ok bool) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return "", "", 0, "", false
	}
	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return "", "", 0, "", false
	}
	right = parts[3]
	if right != "C" && right != "P" {
		return "", "", 0, "", false
	}
	return parts[0], parts[1], strike, right, true
}

func (c *Client) emitStatus(status string) {
	if c.status != nil {
		c.status(domain.VenueDeribit, status)
	}
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
