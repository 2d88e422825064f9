package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

const extractionInstructions = `You are a resume parser. Extract the candidate's ` +
	`name, email, phone, skills, a one-sentence summary and total years of ` +
	`experience from the resume text. Respond with a single JSON object using ` +
	`the keys: name, email, phone, skills, summary, years_experience.`

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client calls a chat-completions style model endpoint to extract
// structured fields from resume text.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://open.bigmodel.cn/api/paas/v4"
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "glm-4-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		model:      config.Model,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (c *Client) Available() bool {
	return c.apiKey != ""
}

func (c *Client) Extract(ctx context.Context, content []byte, fileName string) (domain.ResumeFields, error) {
	if !c.Available() {
		return domain.ResumeFields{}, ErrUnavailable
	}

	text := strings.TrimSpace(string(content))
	if len(text) < 20 {
		return domain.ResumeFields{}, fmt.Errorf("resume content too short to parse: %s", fileName)
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": extractionInstructions},
			{"role": "user", "content": text},
		},
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return domain.ResumeFields{}, fmt.Errorf("marshal extraction payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		fields, callErr := c.callChatCompletionsAPI(ctx, encoded)
		if callErr == nil {
			return fields, nil
		}
		lastErr = callErr

		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return domain.ResumeFields{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown extractor error")
	}
	return domain.ResumeFields{}, lastErr
}

func (c *Client) callChatCompletionsAPI(ctx context.Context, payload []byte) (domain.ResumeFields, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return domain.ResumeFields{}, fmt.Errorf("create extractor request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return domain.ResumeFields{}, fmt.Errorf("call extractor: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return domain.ResumeFields{}, fmt.Errorf("read extractor response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return domain.ResumeFields{}, fmt.Errorf("extractor returned status %d: %s", response.StatusCode, truncate(string(body), 200))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.ResumeFields{}, fmt.Errorf("decode extractor response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return domain.ResumeFields{}, errors.New("extractor returned no choices")
	}

	return parseFieldsJSON(decoded.Choices[0].Message.Content)
}

func parseFieldsJSON(content string) (domain.ResumeFields, error) {
	trimmed := strings.TrimSpace(content)
	// Some models wrap JSON in markdown fences despite json_object mode.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var fields domain.ResumeFields
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return domain.ResumeFields{}, fmt.Errorf("decode extracted fields: %w", err)
	}
	if strings.TrimSpace(fields.Name) == "" {
		return domain.ResumeFields{}, errors.New("extraction produced no candidate name")
	}
	return fields, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
