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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/pkg/middleware/requestid"
)

const maxResponseBytes = 8 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the server origin, e.g. http://localhost:8000.
	BaseURL   string
	APIPrefix string
	// Timeout bounds each HTTP request. Defaults to 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client speaks the classroom API on behalf of one Session.
type Client struct {
	baseURL   string
	http      *http.Client
	session   *Session
	logger    *zap.Logger
	refreshMu sync.Mutex
}

// New constructs a Client. session must not be nil.
func New(cfg Config, session *Session) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.APIPrefix, "/"),
		http:    httpClient,
		session: session,
		logger:  cfg.Logger,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Error  *apiError       `json:"error"`
	Detail string          `json:"detail"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type call struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// out receives the envelope's data field.
	out interface{}
	// raw receives the undecoded body, for file downloads.
	raw    *[]byte
	public bool
}

type reply struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, rq call) error {
	var payload []byte
	if rq.body != nil {
		var err error
		if payload, err = json.Marshal(rq.body); err != nil {
			return fmt.Errorf("encode %s %s: %w", rq.method, rq.path, err)
		}
	}

	token := ""
	if !rq.public {
		token = c.session.CurrentToken()
	}
	rep, err := c.roundTrip(ctx, rq, payload, token)
	if err != nil {
		return err
	}

	if rep.status == http.StatusUnauthorized && !rq.public {
		if err := c.refresh(ctx, token); err != nil {
			c.logger.Info("session refresh failed", zap.Error(err))
			c.session.unauthorized()
			return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired, sign in again", Err: err}
		}
		if rep, err = c.roundTrip(ctx, rq, payload, c.session.CurrentToken()); err != nil {
			return err
		}
		if rep.status == http.StatusUnauthorized {
			c.session.unauthorized()
			return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired, sign in again"}
		}
	}

	if rep.status >= 400 {
		return decodeError(rep)
	}
	if rq.raw != nil {
		*rq.raw = rep.body
		return nil
	}
	if rq.out == nil || len(rep.body) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(rep.body, &env); err != nil {
		return transient("decode response", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, rq.out); err != nil {
		return transient("decode response data", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, rq call, payload []byte, token string) (*reply, error) {
	target := c.baseURL + rq.path
	if len(rq.query) > 0 {
		target += "?" + rq.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, rq.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", rq.method, rq.path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = requestid.New()
	}
	req.Header.Set(requestid.Header, reqID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, transient(fmt.Sprintf("%s %s failed", rq.method, rq.path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transient("read response", err)
	}
	c.logger.Debug("api call",
		zap.String("method", rq.method),
		zap.String("path", rq.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", reqID),
	)
	return &reply{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

// refresh exchanges the refresh token once. Concurrent callers that saw the
// same stale access token share a single refresh.
func (c *Client) refresh(ctx context.Context, staleAccess string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.session.CurrentToken(); current != "" && current != staleAccess {
		return nil
	}
	refreshToken := c.session.refreshToken()
	if refreshToken == "" {
		return errors.New("no refresh token")
	}
	pair, err := c.exchangeRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	return c.session.Set(pair)
}

func decodeError(rep *reply) error {
	var env envelope
	code, message := "", ""
	if err := json.Unmarshal(rep.body, &env); err == nil {
		if env.Error != nil {
			code = env.Error.Code
			message = env.Error.Message
		}
		if env.Detail != "" {
			message = env.Detail
		}
	}
	return classify(rep.status, code, message)
}
