package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridfeed/internal/contracts"
	"gridfeed/pkg/config"
	"gridfeed/pkg/httputil"
	"gridfeed/pkg/logger"
)

// Supported fetch intervals
const (
	IntervalMinute = "1m"
	IntervalDaily  = "1d"
)

// ErrAdjCloseMissing is returned when the chart response carries no
// adjusted-close series. The chart API contract is that adjclose is
// present whenever quotes are; a response without it cannot be screened
// for corporate actions and must not be ingested silently.
var ErrAdjCloseMissing = errors.New("yahoo: adjclose series missing from chart response")

// Client fetches OHLCV bars from the Yahoo Finance chart API.
// All provider calls go through this client.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new chart API client with the configured timeout
// and client-side throttle.
func NewClient(cfg config.ProviderConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.New(log, cfg.Timeout).WithRateLimit(cfg.RequestsPerSec),
		logger:     log.WithField("module", "yahoo"),
		baseURL:    cfg.BaseURL,
	}
}

// FetchBars fetches bars for one symbol over [from, to] at the given
// interval. An empty result is a valid outcome, not an error: the caller
// records it as no_data and proceeds with other symbols.
func (c *Client) FetchBars(ctx context.Context, symbol string, from, to time.Time, interval string) ([]contracts.RawBar, error) {
	if interval != IntervalMinute && interval != IntervalDaily {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	fullURL := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&includeAdjustedClose=true",
		c.baseURL, symbol, from.Unix(), to.Unix(), interval,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown symbol: treat like an empty range
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	bars, err := parseChartResponse(symbol, body)
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"count":    len(bars),
	}).Debug("Fetched bars")
	return bars, nil
}

// chart API response shape (only the parts we read)
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// parseChartResponse decodes a chart payload into raw bars. Null slots
// (minutes the exchange printed no trade for) are skipped; they surface
// later as grid gaps, which is exactly what the gap detector measures.
func parseChartResponse(symbol string, body []byte) ([]contracts.RawBar, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart JSON: %w", err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}

	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]contracts.RawBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		bar := contracts.RawBar{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		if i < len(adj) && adj[i] != nil {
			bar.AdjClose = *adj[i]
			bar.HasAdjClose = true
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
