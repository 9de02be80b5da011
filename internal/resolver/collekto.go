package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/observability"
	"github.com/collectvoice/collectvoice/internal/store"
)

const (
	authPath        = "/api/v2/profile/authenticate"
	loanPath        = "/crm/api/v1/loans/id"
	dispositionPath = "/api/v1/call-disposition/caseHistory"
)

var (
	ErrAuthentication = errors.New("collekto authentication failed")
	ErrAPI            = errors.New("collekto api request failed")
)

// Credentials is one Collekto login. The flow retries once with a fallback
// pair when the primary fails.
type Credentials struct {
	Username string
	Password string
}

type CollektoConfig struct {
	BaseURL  string
	Primary  Credentials
	Fallback Credentials
	Timeout  time.Duration
}

// CollektoClient runs the LTFS flow: authenticate, fetch loan, fetch case
// history.
type CollektoClient struct {
	cfg     CollektoConfig
	log     *zap.Logger
	metrics *observability.Metrics
	client  *fasthttp.Client
}

func NewCollektoClient(cfg CollektoConfig, log *zap.Logger, metrics *observability.Metrics) *CollektoClient {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CollektoClient{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		client:  &fasthttp.Client{},
	}
}

// Resolve runs the flow with the primary credentials and falls back to the
// secondary pair on any failure. Both failing returns the error; the caller
// degrades to an empty record.
func (c *CollektoClient) Resolve(ctx context.Context, loanID, systemID string) (Result, error) {
	res, err := c.runFlow(ctx, c.cfg.Primary, loanID, systemID)
	if err == nil {
		return res, nil
	}
	c.countError("primary")
	c.log.Warn("collekto flow failed, retrying with fallback credentials",
		zap.String("loan_id", loanID), zap.Error(err))

	res, err = c.runFlow(ctx, c.cfg.Fallback, loanID, systemID)
	if err != nil {
		c.countError("fallback")
		return Result{}, err
	}
	return res, nil
}

func (c *CollektoClient) runFlow(ctx context.Context, creds Credentials, loanID, systemID string) (Result, error) {
	token, err := c.authenticate(ctx, creds)
	if err != nil {
		return Result{}, err
	}

	record, err := c.loanByID(ctx, token, loanID)
	if err != nil {
		return Result{}, err
	}

	disposition, err := c.dispositionByID(ctx, token, systemID)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: record, Disposition: disposition}, nil
}

func (c *CollektoClient) authenticate(ctx context.Context, creds Credentials) (string, error) {
	encrypted, err := encryptPassword(creds.Password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	body, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": encrypted,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + authPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Accept", "application/json")
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode())
	}

	var parsed struct {
		Data struct {
			AuthenticationResult struct {
				Token string `json:"bdInfoGHKey_1000"`
			} `json:"authenticationResult"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrAuthentication, err)
	}
	if parsed.Data.AuthenticationResult.Token == "" {
		return "", fmt.Errorf("%w: missing token in response", ErrAuthentication)
	}
	return parsed.Data.AuthenticationResult.Token, nil
}

func (c *CollektoClient) loanByID(ctx context.Context, token, loanID string) (store.CustomerRecord, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+loanPath, token, "id", loanID)
	if err != nil {
		return store.CustomerRecord{}, fmt.Errorf("fetch loan %s: %w", loanID, err)
	}

	var wrapped struct {
		Data store.CustomerRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && !wrapped.Data.Empty() {
		return wrapped.Data, nil
	}
	var record store.CustomerRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return store.CustomerRecord{}, fmt.Errorf("fetch loan %s: %w: malformed body", loanID, ErrAPI)
	}
	return record, nil
}

func (c *CollektoClient) dispositionByID(ctx context.Context, token, loanID string) (string, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+dispositionPath, token, "loanid", loanID)
	if err != nil {
		return "", fmt.Errorf("fetch disposition %s: %w", loanID, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *CollektoClient) get(ctx context.Context, uri, token, idHeader, idValue string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(idHeader, idValue)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPI, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPI, resp.StatusCode())
	}
	return append([]byte(nil), resp.Body()...), nil
}

// do runs one request honoring both the configured timeout and the caller's
// context.
func (c *CollektoClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	errC := make(chan error, 1)
	go func() {
		errC <- c.client.DoTimeout(req, resp, c.cfg.Timeout)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		return err
	}
}

func (c *CollektoClient) countError(stage string) {
	if c.metrics != nil {
		c.metrics.ResolverErrors.WithLabelValues(stage).Inc()
	}
}
