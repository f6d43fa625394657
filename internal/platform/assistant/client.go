// Package assistant forwards owner questions to an OpenAI-compatible chat
// completion API using the key the owner supplies.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidKey  = errors.New("assistant: invalid API key")
	ErrRateLimited = errors.New("assistant: rate limited, try again later")
	ErrEmptyReply  = errors.New("assistant: empty reply")
)

// APIError is any other non-2xx answer from the completion API.
type APIError struct {
	Status     int
	StatusText string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant: completion API returned %d %s", e.Status, e.StatusText)
}

const SystemPrompt = "You are the virtual assistant of a veterinary clinic. " +
	"Answer pet owners' questions about pet care, vaccinations, grooming and the clinic's services " +
	"(checkups, vaccinations, grooming, surgery, deworming). Keep answers short and friendly. " +
	"For anything that sounds urgent, tell the owner to call the clinic or book an urgent appointment. " +
	"Never give a diagnosis or prescribe medication."

type Client struct {
	URL   string
	Model string
	HTTP  *http.Client
}

func NewClient(url, model string) *Client {
	return &Client{URL: url, Model: model, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Ask sends the fixed system prompt and message, authenticated with apiKey,
// and returns the first reply.
func (c *Client) Ask(ctx context.Context, apiKey, message string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrInvalidKey
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode/100 != 2:
		return "", &APIError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("assistant: decode reply: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
