package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the Airtable REST endpoint
	DefaultAPIURL = "https://api.airtable.com/v0"

	// RequestTimeout bounds every Airtable round-trip
	RequestTimeout = 10 * time.Second

	// DefaultMaxRetries is how often a throttled or failed request is re-sent
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff step; it doubles per attempt
	DefaultRetryBaseDelay = 250 * time.Millisecond

	// maxErrorBody caps how much of an error response is kept for logs
	maxErrorBody = 512
)

// Observer receives one call per completed store request.
type Observer interface {
	ObserveStoreRequest(op, table string, err error, elapsed time.Duration)
}

// APIError is a non-2xx Airtable response
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable: status %d: %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable: status %d: %s", e.Status, e.Type)
}

// AirtableClient implements Store over the Airtable REST API
type AirtableClient struct {
	baseURL  string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	retries  uint64
	delay    time.Duration
	tracer   trace.Tracer
	observer Observer
	logger   *slog.Logger
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type writeRequest struct {
	Fields Fields `json:"fields"`
}

// NewAirtableClient creates a client for one Airtable base
func NewAirtableClient(cfg *Config, logger *slog.Logger, observer Observer) (*AirtableClient, error) {
	if cfg.Token == "" {
		return nil, errors.New("airtable token is required")
	}
	if cfg.BaseID == "" {
		return nil, errors.New("airtable base id is required")
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = DefaultRetryBaseDelay
	}

	return &AirtableClient{
		baseURL: strings.TrimRight(apiURL, "/") + "/" + url.PathEscape(cfg.BaseID),
		token:   cfg.Token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		retries:  uint64(retries),
		delay:    delay,
		tracer:   otel.Tracer("github.com/FACorreiaa/ledger-bot/pkg/store"),
		observer: observer,
		logger:   logger,
	}, nil
}

// Query lists all records of table matching filter, following pagination.
func (c *AirtableClient) Query(ctx context.Context, table string, filter Filter) ([]Record, error) {
	var records []Record
	offset := ""

	for {
		params := url.Values{}
		if !filter.IsZero() {
			params.Set("filterByFormula", Formula(filter))
		}
		if offset != "" {
			params.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, "query", table, http.MethodGet, c.tableURL(table, "", params), nil, &page); err != nil {
			return nil, err
		}

		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// Get fetches a single record
func (c *AirtableClient) Get(ctx context.Context, table, id string) (*Record, error) {
	var record Record
	if err := c.do(ctx, "get", table, http.MethodGet, c.tableURL(table, id, nil), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a record and returns the assigned id
func (c *AirtableClient) Create(ctx context.Context, table string, fields Fields) (string, error) {
	var record Record
	if err := c.do(ctx, "create", table, http.MethodPost, c.tableURL(table, "", nil), writeRequest{Fields: fields}, &record); err != nil {
		return "", err
	}
	if record.ID == "" {
		return "", errors.New("airtable: create returned no record id")
	}
	return record.ID, nil
}

// Update patches fields of an existing record
func (c *AirtableClient) Update(ctx context.Context, table, id string, fields Fields) error {
	return c.do(ctx, "update", table, http.MethodPatch, c.tableURL(table, id, nil), writeRequest{Fields: fields}, nil)
}

// Delete removes a record
func (c *AirtableClient) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, "delete", table, http.MethodDelete, c.tableURL(table, id, nil), nil, nil)
}

func (c *AirtableClient) tableURL(table, id string, params url.Values) string {
	u := c.baseURL + "/" + url.PathEscape(table)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *AirtableClient) do(ctx context.Context, op, table, method, endpoint string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "airtable."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("airtable.table", table),
			attribute.String("http.request.method", method),
		),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
		if c.observer != nil {
			c.observer.ObserveStoreRequest(op, table, err, time.Since(start))
		}
	}()

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.delay))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.roundTrip(ctx, op, table, method, endpoint, payload, out)
		if !retryable(method, err) {
			return err
		}
		c.logger.Warn("retrying airtable request",
			slog.String("op", op),
			slog.String("table", table),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
		return retry.RetryableError(err)
	})
}

// roundTrip performs a single attempt of a request.
func (c *AirtableClient) roundTrip(ctx context.Context, op, table, method, endpoint string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("airtable rate limiter: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &transportError{op: op, err: err}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", op, table, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		c.logger.Warn("airtable request failed",
			slog.String("op", op),
			slog.String("table", table),
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(respBody), maxErrorBody)),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return nil
}

// transportError is a request that never produced a response
type transportError struct {
	op  string
	err error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("failed to send %s request: %v", e.op, e.err)
}

func (e *transportError) Unwrap() error { return e.err }

// retryable reports whether a failed attempt may be re-sent. Throttling is
// always retried; server and transport failures only for idempotent
// methods, since a POST may have been applied before the failure.
func retryable(method string, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests {
			return true
		}
		return apiErr.Status >= 500 && method != http.MethodPost
	}

	var tErr *transportError
	return errors.As(err, &tErr) && method != http.MethodPost
}

// parseAPIError understands both error shapes Airtable returns:
// {"error": "NOT_FOUND"} and {"error": {"type": "...", "message": "..."}}.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Type: http.StatusText(status)}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}

	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		if detail.Type != "" {
			apiErr.Type = detail.Type
		}
		apiErr.Message = detail.Message
		return apiErr
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil && code != "" {
		apiErr.Type = code
	}
	return apiErr
}

// Formula renders filter as an Airtable filterByFormula expression:
// AND(SEARCH("t1", LOWER({Field})) > 0, ...).
func Formula(filter Filter) string {
	field := "{" + filter.Field + "}"
	conditions := make([]string, 0, len(filter.Terms))
	for _, term := range filter.Terms {
		conditions = append(conditions, fmt.Sprintf(`SEARCH("%s", LOWER(%s)) > 0`, escapeFormulaString(strings.ToLower(term)), field))
	}
	return "AND(" + strings.Join(conditions, ", ") + ")"
}

func escapeFormulaString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
