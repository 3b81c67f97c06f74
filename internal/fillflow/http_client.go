package fillflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/yourusername/pilotvoice-api/internal/pkg/errors"
)

// HTTPClient реализует API поверх HTTP-интерфейса сервиса
type HTTPClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewHTTPClient создает клиент. Пустой accessToken означает анонимного пользователя.
func NewHTTPClient(baseURL, accessToken string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// StatusError - неожиданный ответ сервера
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

func (c *HTTPClient) GetMyResponse(ctx context.Context, surveyID int64) (*Response, error) {
	var resp *Response
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/surveys/%d/responses/me", surveyID), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) CreateResponse(ctx context.Context, surveyID int64) (*Response, error) {
	var resp Response
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/surveys/%d/responses", surveyID), struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateResponse(ctx context.Context, responseID int64, patch Patch) (*Response, error) {
	var resp Response
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/survey-responses/%d", responseID), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CheckGDPR(ctx context.Context, text string) (*Verdict, error) {
	var verdict Verdict
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/survey-responses/check-gdpr", body, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if dest == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	message := errorMessage(data)
	switch res.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", apperrors.ErrForbidden, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", apperrors.ErrConflict, message)
	}
	return &StatusError{Status: res.StatusCode, Message: message}
}

func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
