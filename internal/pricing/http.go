package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// HTTPConfig holds configuration for the remote pricing service.
type HTTPConfig struct {
	BaseURL           string
	AggressivePath    string
	SlicedPath        string
	Timeout           time.Duration
	RequestsPerSecond int
}

// DefaultHTTPConfig returns the local service defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:           "http://localhost:8000",
		AggressivePath:    "/api/placeAggressiveOrders",
		SlicedPath:        "/api/placeOrders",
		Timeout:           5 * time.Second,
		RequestsPerSecond: 20,
	}
}

// HTTPClient calls the remote pricing service with JSON over HTTP.
type HTTPClient struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPClient creates a new pricing client.
func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.AggressivePath == "" {
		cfg.AggressivePath = def.AggressivePath
	}
	if cfg.SlicedPath == "" {
		cfg.SlicedPath = def.SlicedPath
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}

	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		logger:  logger,
	}
}

// levelPayload is one book level in the service's market dictionary.
type levelPayload struct {
	BidPrice float64 `json:"BidPrice"`
	BidSize  int64   `json:"BidSize"`
	AskPrice float64 `json:"AskPrice"`
	AskSize  int64   `json:"AskSize"`
}

// ladderRequest is the service's request body.
type ladderRequest struct {
	Qty             int64                              `json:"qty"`
	Action          string                             `json:"action"`
	Sym             string                             `json:"sym"`
	BookSide        string                             `json:"book_side"`
	Side            string                             `json:"side"`
	BookLevels      []string                           `json:"book_levels"`
	MarketDictLocal map[string]map[string]levelPayload `json:"market_dict_local"`
	VWAPSym         float64                            `json:"vwap_sym"`
	Strategy        string                             `json:"strategy"`
	InternalID      int64                              `json:"internalID"`
	Size            *int64                             `json:"size,omitempty"`
	NSlices         *int                               `json:"n_slices,omitempty"`
	SliceIterator   *int                               `json:"n_slices_iterator,omitempty"`
	PreVWAP         *float64                           `json:"pre_vwap,omitempty"`
}

// ladderResponse is the service's response body.
type ladderResponse struct {
	OrderPrices []decimal.Decimal `json:"order_prices"`
	OrderQty    []flexInt         `json:"order_qty"`
	Size        flexInt           `json:"size"`
	TargetQ     flexInt           `json:"target_q"`
}

// flexInt decodes a number, a float with no fractional part, or a
// one-element array of either.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = 0
		return nil
	}
	if trimmed[0] == '[' {
		var arr []flexInt
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		if len(arr) == 0 {
			*f = 0
			return nil
		}
		*f = arr[0]
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("decode quantity %s: %w", trimmed, err)
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("decode quantity %s: not an integer", trimmed)
	}
	*f = flexInt(v)
	return nil
}

// Ladder requests a ladder from the remote service.
func (c *HTTPClient) Ladder(ctx context.Context, req Request) (Ladder, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Ladder{}, ctxErr
		}
		return Ladder{}, types.NewRetryable("pricing.ladder", fmt.Errorf("%w: %v", types.ErrRateLimitExceeded, err))
	}

	path := c.cfg.SlicedPath
	if req.Aggressive {
		path = c.cfg.AggressivePath
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return Ladder{}, types.NewFatal("pricing.ladder", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Ladder{}, types.NewFatal("pricing.ladder", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Ladder{}, ctxErr
		}
		return Ladder{}, types.NewRetryable("pricing.ladder", fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Ladder{}, types.NewRetryable("pricing.ladder", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("pricing service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Ladder{}, types.NewRetryable("pricing.ladder", statusErr)
		}
		return Ladder{}, types.NewFatal("pricing.ladder", statusErr)
	}

	var decoded ladderResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Ladder{}, types.NewFatal("pricing.ladder", fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.OrderPrices) != len(decoded.OrderQty) {
		return Ladder{}, types.NewFatal("pricing.ladder", fmt.Errorf("decode response: %d prices for %d quantities",
			len(decoded.OrderPrices), len(decoded.OrderQty)))
	}

	ladder := Ladder{
		Size:       int64(decoded.Size),
		TargetSize: int64(decoded.TargetQ),
	}
	for i, p := range decoded.OrderPrices {
		ladder.Rungs = append(ladder.Rungs, Rung{Price: p, Qty: int64(decoded.OrderQty[i])})
	}

	c.logger.Debug("pricing ladder received",
		"path", path,
		"rungs", len(ladder.Rungs),
		"size", ladder.Size,
		"target", ladder.TargetSize,
		"latency", time.Since(start),
	)

	return ladder, nil
}

// buildRequest maps a Request onto the service's body.
func buildRequest(req Request) ladderRequest {
	levels := make(map[string]levelPayload, len(req.Depth))
	for name, l := range req.Depth {
		levels[name] = levelPayload{
			BidPrice: l.BidPrice.InexactFloat64(),
			BidSize:  l.BidSize,
			AskPrice: l.AskPrice.InexactFloat64(),
			AskSize:  l.AskSize,
		}
	}

	body := ladderRequest{
		Qty:             req.Residual,
		Action:          req.Side.String(),
		Sym:             req.Symbol,
		BookSide:        req.Side.BookSide(),
		Side:            req.Side.Code(),
		BookLevels:      req.BookLevels,
		MarketDictLocal: map[string]map[string]levelPayload{req.Symbol: levels},
		VWAPSym:         req.VWAP.InexactFloat64(),
		Strategy:        req.Strategy,
		InternalID:      req.InternalID,
	}

	if req.Aggressive {
		var size int64
		body.Size = &size
		return body
	}

	slice, count := req.Slice, req.SliceCount
	pre := req.PreVWAP.InexactFloat64()
	body.SliceIterator = &slice
	body.NSlices = &count
	body.PreVWAP = &pre
	return body
}

// Ensure HTTPClient implements Pricer
var _ Pricer = (*HTTPClient)(nil)
