package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/strrl/castor/pkg/models"
)

// Client talks to the Castor REST backend. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping calls GET / and returns the backend banner
func (c *Client) Ping(ctx context.Context) (string, error) {
	var resp rootResponse
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// NewSession asks the backend to initialize a chat session for project and phase
func (c *Client) NewSession(ctx context.Context, project, phase string) error {
	return c.doJSON(ctx, http.MethodPost, "/new_session", sessionRequest{Project: project, Phase: phase}, nil)
}

// Chat sends one user message and returns the assistant reply
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var resp chatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ListProjects returns the project names known to the backend
func (c *Client) ListProjects(ctx context.Context) ([]string, error) {
	var resp projectsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// ListHistories returns the stored history filenames of a project
func (c *Client) ListHistories(ctx context.Context, project string) ([]string, error) {
	var resp historiesResponse
	path := "/projects/" + url.PathEscape(project) + "/histories"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Histories, nil
}

// LoadHistory fetches a stored session for display without activating it
func (c *Client) LoadHistory(ctx context.Context, project, phase, sessionID string) (*models.History, error) {
	const op = "/load_history"
	body, err := c.do(ctx, http.MethodPost, op, historyRequest{Project: project, Phase: phase, SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	history, err := decodeHistory(body)
	if err != nil {
		return nil, newMalformedError(op, err)
	}
	return history, nil
}

// ResumeSession re-activates a stored session on the backend
func (c *Client) ResumeSession(ctx context.Context, project, phase, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, "/resume_session", historyRequest{Project: project, Phase: phase, SessionID: sessionID}, nil)
}

// CreateProject creates a project; creating an existing project is not an error
func (c *Client) CreateProject(ctx context.Context, project string) error {
	return c.doJSON(ctx, http.MethodPost, "/create_project", projectRequest{Project: project}, nil)
}

// DeleteProject removes a project and all of its histories
func (c *Client) DeleteProject(ctx context.Context, project string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+url.PathEscape(project), nil, nil)
}

// DeleteHistory removes one stored history
func (c *Client) DeleteHistory(ctx context.Context, project, phase, sessionID string) error {
	path := fmt.Sprintf("/projects/%s/histories/%s/%s",
		url.PathEscape(project), url.PathEscape(phase), url.PathEscape(sessionID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ResetSession resets the backend's global chat session
func (c *Client) ResetSession(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/reset_session", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newMalformedError(path, err)
	}
	return nil
}

// do performs the request and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, newNetworkError(path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(path, err)
	}

	c.logger.Debug("backend request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		// A body without a usable detail still yields a backend error.
		_ = json.Unmarshal(body, &errResp)
		return nil, newBackendError(path, resp.StatusCode, errResp.Detail)
	}
	return body, nil
}

// CloseIdleConnections closes keep-alive connections held by the transport
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
