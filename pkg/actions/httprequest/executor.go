// Package httprequest provides a built-in action executor that calls an
// external HTTP endpoint with the activation payload available to its
// configuration templates.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/trigonhq/trigon/pkg/expr"
	"github.com/trigonhq/trigon/pkg/protocol"
)

const executorID = "core/http_request"

const defaultTimeout = 30 * time.Second

// Config defines the http_request action configuration.
type Config struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
	Retries int
}

// Executor performs one HTTP request per execution. Non-2xx responses are
// returned as errors so the engine marks the action FAILED.
type Executor struct {
	config    Config
	client    *http.Client
	evaluator expr.Evaluator
}

// Factory builds http_request executors.
type Factory struct {
	Evaluator expr.Evaluator
}

func (f *Factory) ID() string {
	return executorID
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url":     map[string]any{"type": "string"},
			"method":  map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{"type": "string"},
			"timeout": map[string]any{"type": "number"},
			"retries": map[string]any{"type": "number"},
		},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionExecutor, error) {
	cfg := Config{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: defaultTimeout,
	}

	url, ok := config["url"].(string)
	if !ok {
		return nil, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := config["method"].(string); ok {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				cfg.Headers[key] = str
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		cfg.Body = body
	}

	if timeout, ok := config["timeout"].(float64); ok {
		cfg.Timeout = time.Duration(timeout) * time.Second
	}

	if retries, ok := config["retries"].(float64); ok {
		cfg.Retries = int(retries)
	}

	return &Executor{
		config:    cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		evaluator: f.Evaluator,
	}, nil
}

func (e *Executor) Execute(ctx context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (*protocol.Result, error) {
	url, err := e.render(e.config.URL, req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to render url: %w", err)
	}

	body, err := e.render(e.config.Body, req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	var result *protocol.Result

	backoff := retry.WithMaxRetries(uint64(e.config.Retries), retry.NewExponential(time.Second))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err = e.doRequest(ctx, url, body)
		if err != nil {
			logger.WarnContext(ctx, "HTTP request attempt failed",
				"action_id", req.ActionID, "url", url, "error", err)

			return retry.RetryableError(err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Executor) doRequest(ctx context.Context, url, body string) (*protocol.Result, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, e.config.Method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, value := range e.config.Headers {
		request.Header.Set(key, value)
	}

	response, err := e.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", response.StatusCode)
	}

	output := map[string]any{
		"status_code": response.StatusCode,
		"body":        string(responseBody),
	}

	var parsed map[string]any
	if json.Unmarshal(responseBody, &parsed) == nil {
		output["json"] = parsed
	}

	return &protocol.Result{Output: output}, nil
}

// render evaluates a templated config value against the payload; plain
// strings pass through unchanged.
func (e *Executor) render(value string, payload map[string]any) (string, error) {
	if !strings.HasPrefix(value, "{{") || !strings.HasSuffix(value, "}}") {
		return value, nil
	}

	rendered, err := e.evaluator.Evaluate(value, payload, time.Now().UTC())
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v", rendered), nil
}
