// Package openai transcribes recorded confirmation answers with the
// Whisper transcription API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/git-commit/this-building-rocks-assistant/internal/infra"
)

const defaultBaseURL = "https://api.openai.com/v1"

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("whisper API error %d: %s", e.status, e.body)
}

type Option func(*WhisperClient)

func WithBaseURL(u string) Option {
	return func(c *WhisperClient) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithModel(model string) Option {
	return func(c *WhisperClient) { c.model = model }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *WhisperClient) { c.httpClient = hc }
}

func WithRetry(cfg infra.RetryConfig) Option {
	return func(c *WhisperClient) { c.retry = cfg }
}

type WhisperClient struct {
	apiKey     string
	language   string
	model      string
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewWhisperClient(apiKey, language string, opts ...Option) *WhisperClient {
	c := &WhisperClient{
		apiKey:     apiKey,
		language:   language,
		model:      "whisper-1",
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      infra.RetryConfig{MaxAttempts: 2, InitialDelay: 250 * time.Millisecond, Multiplier: 2},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Retryable = func(err error) bool {
		var ae *apiError
		if errors.As(err, &ae) {
			return infra.IsRetryableHTTPStatus(ae.status)
		}
		return false
	}
	return c
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	body, contentType, err := c.form(audio)
	if err != nil {
		return "", err
	}

	var result transcriptionResponse
	err = infra.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(result.Text), nil
}

func (c *WhisperClient) form(audio []byte) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "answer.wav")
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, "", fmt.Errorf("writing model field: %w", err)
	}
	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return nil, "", fmt.Errorf("writing language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}
