package dispatch

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

	"github.com/jdmarin/boxvalet-backend/pkg/config"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

const (
	defaultRequestTimeout       = 10 * time.Second
	requestBodyReadLimit  int64 = 1024
)

var (
	errAPIKeyRequired  = errors.New("dispatch api key is required")
	errBaseURLRequired = errors.New("dispatch base url is required")
)

// Client wraps the dispatch platform's task API. Tasks created here show up
// in the field workers' routing app grouped by container.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	apiKey             string
	defaultContainerID string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the dispatch platform client from configuration.
func NewClient(cfg config.DispatchConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	client := &Client{
		httpClient:         &http.Client{Timeout: timeout},
		baseURL:            baseURL,
		apiKey:             apiKey,
		defaultContainerID: strings.TrimSpace(cfg.DefaultContainerID),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}

	return client, nil
}

// DefaultContainerID returns the shared container for unassigned tasks.
func (c *Client) DefaultContainerID() string {
	if c == nil {
		return ""
	}
	return c.defaultContainerID
}

// Destination is the address a task is served at.
type Destination struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Recipient identifies the customer attached to a task.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TaskParams carries the mutable fields of a platform task.
type TaskParams struct {
	ContainerID    string            `json:"containerId"`
	WorkerID       *string           `json:"workerId,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CompleteAfter  time.Time         `json:"-"`
	CompleteBefore time.Time         `json:"-"`
	Destination    Destination       `json:"destination"`
	Recipient      Recipient         `json:"recipient"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Task is the platform's representation of a dispatch task.
type Task struct {
	ID             string            `json:"id"`
	ContainerID    string            `json:"containerId"`
	WorkerID       *string           `json:"workerId"`
	Notes          string            `json:"notes"`
	CompleteAfter  int64             `json:"completeAfter"`
	CompleteBefore int64             `json:"completeBefore"`
	Destination    Destination       `json:"destination"`
	Recipient      Recipient         `json:"recipient"`
	Metadata       map[string]string `json:"metadata"`
}

type taskRequest struct {
	TaskParams
	CompleteAfter  int64 `json:"completeAfter"`
	CompleteBefore int64 `json:"completeBefore"`
}

// CreateTask creates a task on the platform and returns its canonical form.
func (c *Client) CreateTask(ctx context.Context, params TaskParams) (*Task, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch client not configured")
	}
	if strings.TrimSpace(params.ContainerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container id is required")
	}
	var task Task
	if err := c.do(ctx, http.MethodPost, "tasks", newTaskRequest(params), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces the mutable fields of an existing task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, params TaskParams) (*Task, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch client not configured")
	}
	trimmed := strings.TrimSpace(taskID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	var task Task
	path := fmt.Sprintf("tasks/%s", url.PathEscape(trimmed))
	if err := c.do(ctx, http.MethodPut, path, newTaskRequest(params), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the task from the platform.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "dispatch client not configured")
	}
	trimmed := strings.TrimSpace(taskID)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	path := fmt.Sprintf("tasks/%s", url.PathEscape(trimmed))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetTask fetches the current platform state of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch client not configured")
	}
	trimmed := strings.TrimSpace(taskID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task id is required")
	}
	var task Task
	path := fmt.Sprintf("tasks/%s", url.PathEscape(trimmed))
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func newTaskRequest(params TaskParams) taskRequest {
	return taskRequest{
		TaskParams:     params,
		CompleteAfter:  params.CompleteAfter.UnixMilli(),
		CompleteBefore: params.CompleteBefore.UnixMilli(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal dispatch request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build dispatch request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute dispatch request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "dispatch task not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "dispatch request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode dispatch response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
