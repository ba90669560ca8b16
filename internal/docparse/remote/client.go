// Package remote talks to an HTTP document extraction service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"quoteintake/internal"
	"quoteintake/internal/config"
)

type Options struct {
	URL         string
	Token       string
	Timeout     time.Duration
	RateLimit   float64
	MaxAttempts int
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		URL:         cfg.DocParseURL,
		Token:       cfg.DocParseToken,
		Timeout:     cfg.DocParseTimeout,
		RateLimit:   cfg.DocParseRateLimit,
		MaxAttempts: cfg.DocParseMaxAttempts,
	}
}

type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	schema     *jsonschema.Schema
	logger     *slog.Logger
	backoff    func(attempt int) time.Duration
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("missing DOCPARSE_URL")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		schema:     schema,
		logger:     logger,
		backoff:    jitteredBackoff,
	}, nil
}

// ParseDocument uploads the file and returns the service answer as-is.
// Normalization is left to the caller.
func (c *Client) ParseDocument(ctx context.Context, content []byte, fileName string) (internal.DocumentResponse, error) {
	body, contentType, err := multipartBody(content, fileName)
	if err != nil {
		return internal.DocumentResponse{}, err
	}
	reqID := uuid.NewString()
	log := c.logger.With("req_id", reqID, "file", fileName)

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return internal.DocumentResponse{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
		if err != nil {
			return internal.DocumentResponse{}, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", reqID)
		if c.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return internal.DocumentResponse{}, ctx.Err()
			}
			lastErr = err
			log.Warn("docparse.http.error", "attempt", attempt, "err", err)
			if err := c.sleep(ctx, attempt); err != nil {
				return internal.DocumentResponse{}, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		log.Info("docparse.http.response", "attempt", attempt, "status", resp.StatusCode, "bytes", len(respBody), "elapsed_ms", time.Since(start).Milliseconds())
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("docparse status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
			if isRetryableStatus(resp.StatusCode) && attempt < c.opts.MaxAttempts {
				if err := c.sleep(ctx, attempt); err != nil {
					return internal.DocumentResponse{}, err
				}
				continue
			}
			return internal.DocumentResponse{}, lastErr
		}

		return c.decode(respBody)
	}

	if lastErr == nil {
		lastErr = errors.New("docparse request failed")
	}
	return internal.DocumentResponse{}, lastErr
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	if attempt >= c.opts.MaxAttempts {
		return nil
	}
	t := time.NewTimer(c.backoff(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitteredBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func multipartBody(content []byte, fileName string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireItem struct {
	Name        string          `json:"name"`
	Price       json.RawMessage `json:"price"`
	UnitPrice   json.RawMessage `json:"unitPrice"`
	ExpiryLabel *string         `json:"expiryLabel"`
	Expiry      *string         `json:"expiry"`
	Code        *string         `json:"code"`
}

type wireResponse struct {
	Items      []wireItem      `json:"items"`
	RawText    *string         `json:"rawText"`
	TotalPages *int            `json:"totalPages"`
	Confidence json.RawMessage `json:"confidence"`
}

func (c *Client) decode(body []byte) (internal.DocumentResponse, error) {
	if !json.Valid(body) {
		repaired, err := jsonrepair.RepairJSON(string(body))
		if err != nil {
			return internal.DocumentResponse{}, fmt.Errorf("repair docparse json: %w", err)
		}
		c.logger.Warn("docparse.json.repaired", "bytes", len(body))
		body = []byte(repaired)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
		if !*env.Success {
			return internal.DocumentResponse{}, fmt.Errorf("docparse unsuccessful: %s", env.Message)
		}
		body = env.Data
	}

	if err := c.validate(body); err != nil {
		return internal.DocumentResponse{}, err
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return internal.DocumentResponse{}, fmt.Errorf("decode docparse response: %w", err)
	}

	out := internal.DocumentResponse{
		RawText:    wire.RawText,
		TotalPages: wire.TotalPages,
		Confidence: scalarString(wire.Confidence),
	}
	if wire.Items != nil {
		out.Items = make([]internal.DocumentItem, 0, len(wire.Items))
	}
	for _, it := range wire.Items {
		price := scalarString(it.Price)
		if price == nil {
			price = scalarString(it.UnitPrice)
		}
		expiry := it.ExpiryLabel
		if expiry == nil {
			expiry = it.Expiry
		}
		item := internal.DocumentItem{Name: it.Name, ExpiryLabel: expiry, Code: it.Code}
		if price != nil {
			item.Price = *price
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (c *Client) validate(body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("unmarshal docparse response: %w", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return fmt.Errorf("docparse response does not match schema: %w", err)
	}
	return nil
}

// scalarString renders a JSON string or number as text. Anything else is nil.
func scalarString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		s = strconv.FormatFloat(f, 'f', -1, 64)
		return &s
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
