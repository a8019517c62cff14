package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 32 << 20

// Options configures a StrategyClient
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	ServiceKey string
	// Signer adds a bearer token to every request when set
	Signer *TokenSigner
	// RetryMaxElapsed bounds retries of idempotent reads. Zero disables retries.
	RetryMaxElapsed      time.Duration
	RetryInitialInterval time.Duration
}

// StrategyClient handles communication with the remote strategy service
type StrategyClient struct {
	baseURL    string
	serviceKey string
	signer     *TokenSigner
	httpClient *http.Client
	logger     *zap.Logger

	retryMaxElapsed      time.Duration
	retryInitialInterval time.Duration
}

// NewStrategyClient creates a new remote strategy service client
func NewStrategyClient(opts Options, logger *zap.Logger) *StrategyClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second // Backtests can be slow
	}

	return &StrategyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		serviceKey: opts.ServiceKey,
		signer:     opts.Signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:               logger,
		retryMaxElapsed:      opts.RetryMaxElapsed,
		retryInitialInterval: opts.RetryInitialInterval,
	}
}

// ListStrategies retrieves the full strategy list. Transport failures and
// 5xx answers are retried with exponential backoff.
func (c *StrategyClient) ListStrategies(ctx context.Context) ([]model.StrategyRecord, error) {
	const op = "list strategies"

	var records []model.StrategyRecord
	operation := func() error {
		body, err := c.do(ctx, op, http.MethodGet, "/strategies", nil)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		records = nil
		if err := json.Unmarshal(body, &records); err != nil {
			c.logger.Error("Failed to decode strategy list", zap.Error(err))
			return backoff.Permanent(&model.RemoteError{Op: op, Message: "malformed strategy list", Err: err})
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying strategy list",
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateStrategy saves a new strategy. It returns a nil record when the
// service acknowledges the create without echoing the entity.
func (c *StrategyClient) CreateStrategy(ctx context.Context, req model.CreateStrategyRequest) (*model.StrategyRecord, error) {
	body, err := c.do(ctx, "create strategy", http.MethodPost, "/strategies", req)
	if err != nil {
		return nil, err
	}

	var record model.StrategyRecord
	if err := json.Unmarshal(body, &record); err != nil || record.ID == "" {
		c.logger.Debug("Create acknowledged without entity", zap.String("name", req.Name))
		return nil, nil
	}
	return &record, nil
}

// RenameStrategy renames a strategy. The acknowledgement body is ignored.
func (c *StrategyClient) RenameStrategy(ctx context.Context, id model.StrategyID, name string) error {
	payload := model.RenameStrategyRequest{Name: name}
	_, err := c.do(ctx, "rename strategy", http.MethodPut, strategyPath(id), payload)
	return err
}

// DeleteStrategy deletes a strategy
func (c *StrategyClient) DeleteStrategy(ctx context.Context, id model.StrategyID) error {
	_, err := c.do(ctx, "delete strategy", http.MethodDelete, strategyPath(id), nil)
	return err
}

// RunBacktest sends a backtest request and returns the raw response body.
// Interpreting the body is left to the normalizer.
func (c *StrategyClient) RunBacktest(ctx context.Context, payload model.BacktestPayload) ([]byte, error) {
	c.logger.Info("Sending backtest request",
		zap.String("ticker", payload.Ticker),
		zap.Int("blocks", len(payload.Blocks)))

	return c.do(ctx, "run backtest", http.MethodPost, "/backtest", payload)
}

// RunSimulation posts an intraday replay request and returns the raw
// response body for normalization
func (c *StrategyClient) RunSimulation(ctx context.Context, payload model.BacktestPayload) ([]byte, error) {
	c.logger.Info("Sending simulation request",
		zap.String("ticker", payload.Ticker),
		zap.Int("blocks", len(payload.Blocks)))

	return c.do(ctx, "run simulation", http.MethodPost, "/simulate", payload)
}

// do executes one request and returns the body of a 2xx answer. Any other
// outcome is returned as a *model.RemoteError.
func (c *StrategyClient) do(ctx context.Context, op, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.serviceKey != "" {
		req.Header.Set("X-Service-Key", c.serviceKey)
	}
	if c.signer != nil {
		token, err := c.signer.Sign()
		if err != nil {
			return nil, fmt.Errorf("failed to sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send request to strategy service",
			zap.String("op", op),
			zap.Error(err))
		return nil, &model.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("Failed to read strategy service response",
			zap.String("op", op),
			zap.Error(err))
		return nil, &model.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	// Check for error status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := errorText(body)
		c.logger.Error("Strategy service returned error status",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", message))
		return nil, &model.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: message}
	}

	return body, nil
}

func (c *StrategyClient) newBackOff() backoff.BackOff {
	if c.retryMaxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	if c.retryInitialInterval > 0 {
		b.InitialInterval = c.retryInitialInterval
	}
	b.MaxElapsedTime = c.retryMaxElapsed
	b.Reset()
	return b
}

// retryable reports whether a failed read is worth repeating: transport
// failures, throttling and server errors
func retryable(err error) bool {
	var remoteErr *model.RemoteError
	if !errors.As(err, &remoteErr) {
		return false
	}
	return remoteErr.StatusCode == 0 ||
		remoteErr.StatusCode == http.StatusTooManyRequests ||
		remoteErr.StatusCode >= http.StatusInternalServerError
}

// errorText extracts {"error": "..."} from an error body, falling back to
// the trimmed body text
func errorText(body []byte) string {
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
		return errorResp.Error
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func strategyPath(id model.StrategyID) string {
	return "/strategies/" + url.PathEscape(id.String())
}
