package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CareChat/model"

	"github.com/pkg/errors"
)

// Config controls the REST client.
type Config struct {
	BaseURL    string
	Token      string // bearer token, sent on every request
	Timeout    time.Duration
	HTTPClient *http.Client // injectable for tests; nil builds one from Timeout
}

func (c *Config) norm() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// Client talks to the care-coordination backend over its request/response
// surface. Push events arrive separately through the stream consumer.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	cfg.norm()
	return &Client{cfg: cfg, http: cfg.HTTPClient}
}

// envelope is the generic response wrapper. Some deployments return the
// payload bare, some under data; decode tolerates both.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &connectivityError{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &connectivityError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw, method, path)
	}
	if out == nil {
		return nil
	}
	return decodeBody(raw, out)
}

// decodeBody accepts either a bare payload or an {success,data} envelope.
func decodeBody(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err == nil {
			return nil
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func statusError(status int, raw []byte, method, path string) error {
	var env envelope
	_ = json.Unmarshal(raw, &env)
	msg := env.Error
	switch status {
	case http.StatusUnauthorized:
		return errors.Wrapf(ErrAuthRequired, "%s %s", method, path)
	case http.StatusForbidden:
		return errors.Wrapf(ErrAccessDenied, "%s %s", method, path)
	case http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s %s", method, path)
	}
	// The backend reports a duplicate reaction as a plain 4xx with a text
	// marker. Surfacing it as a sentinel lets the session run its toggle-off
	// recovery instead of showing an error.
	if strings.Contains(strings.ToLower(msg), "already reacted") {
		return ErrAlreadyReacted
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s %s: %s (status %d)", method, path, msg, status)
}

// GetConversation fetches conversation metadata including the participant
// list with per-participant write/manage flags.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// listPayload covers the three documented history response shapes:
// {success,data:{items:[...]}}, {messages:[...]}, or an empty body.
type listPayload struct {
	Success bool `json:"success"`
	Data    struct {
		Items []model.Message `json:"items"`
	} `json:"data"`
	Messages []model.Message `json:"messages"`
}

// ListMessages fetches the first page of conversation history.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages?limit=%d", url.PathEscape(conversationID), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &connectivityError{err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &connectivityError{err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, raw, http.MethodGet, path)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var pl listPayload
	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	if pl.Data.Items != nil {
		return pl.Data.Items, nil
	}
	return pl.Messages, nil
}

// CreateMessageRequest is the POST body of a send.
type CreateMessageRequest struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

// CreateMessage persists a new message and returns the server-confirmed copy.
func (c *Client) CreateMessage(ctx context.Context, conversationID, content string, attachments []string) (*model.Message, error) {
	var msg model.Message
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	body := CreateMessageRequest{Content: content, Attachments: attachments}
	if err := c.do(ctx, http.MethodPost, path, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddReaction records an emoji reaction. A desynced duplicate comes back as
// ErrAlreadyReacted.
func (c *Client) AddReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	path := fmt.Sprintf("/conversations/%s/messages/%s/reactions",
		url.PathEscape(conversationID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodPost, path, map[string]string{"emoji": emoji}, nil)
}

// RemoveReaction deletes the caller's reaction for one emoji.
func (c *Client) RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	path := fmt.Sprintf("/conversations/%s/messages/%s/reactions/%s",
		url.PathEscape(conversationID), url.PathEscape(messageID), url.PathEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// LeaveConversation removes a participant.
func (c *Client) LeaveConversation(ctx context.Context, conversationID, userID string) error {
	path := fmt.Sprintf("/conversations/%s/participants/%s",
		url.PathEscape(conversationID), url.PathEscape(userID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
