// Package chessclient talks to a chess server: Client for the REST surface,
// Live for one websocket session.
package chessclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/pkg/chessdto"
)

// APIError is a non-2xx reply. It unwraps to the domain error the status stands for.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chess api error: status=%d message=%s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case fasthttp.StatusBadRequest:
		return domain.ErrInvalidRequest
	case fasthttp.StatusUnauthorized:
		return domain.ErrUnauthorized
	case fasthttp.StatusForbidden:
		return domain.ErrAlreadyTaken
	case fasthttp.StatusNotFound:
		return domain.ErrNotFound
	default:
		return nil
	}
}

// Client remembers the token from the last Register or Login and sends it on
// every later call.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets the attempt count for idempotent reads.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, username, password, email string) (*chessdto.AuthResponse, error) {
	req := chessdto.RegisterRequest{Username: username, Password: password, Email: email}
	var resp chessdto.AuthResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/user", req, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.AuthToken)
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*chessdto.AuthResponse, error) {
	req := chessdto.LoginRequest{Username: username, Password: password}
	var resp chessdto.AuthResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session", req, &resp, false); err != nil {
		return nil, err
	}
	c.SetToken(resp.AuthToken)
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.doJSON(ctx, fasthttp.MethodDelete, "/session", nil, nil, false); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) ListGames(ctx context.Context) ([]chessdto.GameSummary, error) {
	var resp chessdto.ListGamesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

func (c *Client) CreateGame(ctx context.Context, name string) (int, error) {
	var resp chessdto.CreateGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/game", chessdto.CreateGameRequest{GameName: name}, &resp, false); err != nil {
		return 0, err
	}
	return resp.GameID, nil
}

// JoinGame binds the caller to color ("WHITE" or "BLACK").
func (c *Client) JoinGame(ctx context.Context, gameID int, color string) error {
	return c.doJSON(ctx, fasthttp.MethodPut, "/game", chessdto.JoinGameRequest{PlayerColor: color, GameID: gameID}, nil, false)
}

// Clear wipes the whole server. Meant for tests and smoke checks.
func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/db", nil, nil, false)
}

// BoardPNG fetches the rendered board from perspective ("white" or "black").
func (c *Client) BoardPNG(ctx context.Context, gameID int, perspective string) ([]byte, error) {
	path := "/game/board.png?gameID=" + strconv.Itoa(gameID)
	if perspective != "" {
		path += "&perspective=" + perspective
	}
	var raw []byte
	if err := c.do(ctx, fasthttp.MethodGet, path, nil, func(body []byte) error {
		raw = append([]byte(nil), body...)
		return nil
	}, true); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	var decode func([]byte) error
	if out != nil {
		decode = func(body []byte) error {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
	}
	return c.do(ctx, method, path, payload, decode, retry)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, decode func([]byte) error, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if token := c.Token(); token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, token)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Message: truncate(string(resp.Body()), 512)}
			var body chessdto.ErrorResponse
			if json.Unmarshal(resp.Body(), &body) == nil && body.Message != "" {
				apiErr.Message = body.Message
			}
			if !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
		} else {
			if decode != nil {
				return decode(resp.Body())
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = max(1, min(attempt, 6))
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
