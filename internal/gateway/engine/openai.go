package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradewatch/internal/logger"
)

// OpenAIEngine calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIEngine struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	MaxRetries   int
	ExtraHeaders map[string]string
	Prompts      Prompts
	HTTPClient   *http.Client

	sleep func(context.Context, time.Duration) error
}

func (e *OpenAIEngine) Name() string {
	return "openai:" + e.Model
}

func (e *OpenAIEngine) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(e.BaseURL), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (e *OpenAIEngine) Invoke(ctx context.Context, promptContext string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if e.Prompts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: e.Prompts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: e.Prompts.UserMessage(promptContext)})
	body, err := json.Marshal(chatRequest{Model: e.Model, Messages: messages, Temperature: e.Temperature})
	if err != nil {
		return "", err
	}

	httpc := e.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	sleep := e.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxRetries := e.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	url := e.endpoint()
	logger.Debugf("engine: POST %s model=%s auth=%s", url, e.Model, maskKey(e.APIKey))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if e.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.APIKey)
		}
		for k, v := range e.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", fmt.Errorf("chat completion request: %w", err)
		}
		if resp.StatusCode/100 == 2 {
			var r chatResponse
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", fmt.Errorf("decode chat completion: %w", derr)
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("chat completion returned no choices")
			}
			return r.Choices[0].Message.Content, nil
		}

		var eresp chatError
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if !retryable(resp.StatusCode) || attempt == maxRetries {
			break
		}
		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait == 0 {
			wait = 800 * time.Millisecond << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		logger.Warnf("engine: %v, retry %d/%d in %s", lastErr, attempt+1, maxRetries, wait)
		if err := sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func maskKey(key string) string {
	if key == "" {
		return "none"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
