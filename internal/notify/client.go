// Package notify предоставляет клиент API уведомлений.
package notify

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

// ErrNotConfigured возвращается, если адрес API уведомлений не задан.
var ErrNotConfigured = errors.New("notification client not configured")

// Client инкапсулирует HTTP-взаимодействие с API уведомлений.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Notification описывает уведомление пользователю.
type Notification struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	EmergencyID string    `json:"emergency_id,omitempty"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewClient создаёт HTTP-клиент для обращения к API уведомлений по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Notify создаёт уведомление и возвращает его в том виде, в каком его сохранил API.
func (c *Client) Notify(ctx context.Context, n Notification) (*Notification, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNoContent {
		return &n, nil
	}

	var created Notification
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &created, nil
}
