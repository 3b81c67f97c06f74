package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel    = "anthropic/claude-3.5-sonnet"

	maxErrorBodyBytes = 64 << 10
)

// Config - параметры клиента OpenRouter
type Config struct {
	APIKey            string
	Endpoint          string
	SiteURL           string
	AppName           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client выполняет запросы структурированных ответов к OpenRouter
type Client struct {
	apiKey     string
	endpoint   string
	siteURL    string
	appName    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient создает клиента. Без ключа API клиент не создается.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "http://localhost:3000"
	}
	if cfg.AppName == "" {
		cfg.AppName = "PilotVoice"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		siteURL:    cfg.SiteURL,
		appName:    cfg.AppName,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.Named("openrouter"),
	}, nil
}

// StructuredCompletion отправляет запрос и декодирует JSON-объект ответа в dest
func (c *Client) StructuredCompletion(ctx context.Context, params CompletionParams, dest any) (err error) {
	ctx, span := otel.Tracer("pilotvoice-api/openrouter").Start(ctx, "openrouter.completion")
	span.SetAttributes(
		attribute.String("llm.model", params.Model),
		attribute.String("llm.schema", params.SchemaName),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Cause: err}
	}

	payload, err := json.Marshal(c.buildRequestBody(params))
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.do(ctx, payload)
	if err != nil {
		return err
	}

	if len(resp.Choices) == 0 {
		return &ValidationError{Message: "API response contains no choices"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return &ValidationError{Message: "API response contains no content"}
	}

	if err := decodeObject(content, requiredKeys(params.Schema), dest); err != nil {
		c.logger.Warn("Failed to parse structured completion", zap.String("schema", params.SchemaName), zap.Error(err))
		return err
	}
	return nil
}

func (c *Client) buildRequestBody(params CompletionParams) requestBody {
	model := params.Model
	if model == "" {
		model = DefaultModel
	}
	return requestBody{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: params.SystemPrompt},
			{Role: "user", Content: params.UserPrompt},
		},
		ResponseFormat: ResponseFormat{
			Type: "json_schema",
			JSONSchema: JSONSchema{
				Name:   params.SchemaName,
				Strict: true,
				Schema: params.Schema,
			},
		},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
}

func (c *Client) do(ctx context.Context, payload []byte) (*responseBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", c.appName)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Network request failed", zap.Error(err))
		return nil, &NetworkError{Cause: err}
	}
	defer httpResp.Body.Close()

	c.logger.Debug("OpenRouter response",
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		details := string(raw)
		var body apiErrorBody
		if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
			details = body.Error.Message
		}
		return nil, &APIError{
			Status:  httpResp.StatusCode,
			Message: statusMessage(httpResp.StatusCode, details),
			Details: details,
		}
	}

	var resp responseBody
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &ValidationError{Message: "Failed to parse API response as JSON", Cause: err}
		}
		return nil, &NetworkError{Cause: err}
	}
	return &resp, nil
}
