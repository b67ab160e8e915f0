package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.line.me"

type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	return c.reply(ctx, ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []TextMessage{{Type: MessageText, Text: text}},
	})
}

// ReplyQuickReply sends text with quick-reply buttons attached.
func (c *Client) ReplyQuickReply(ctx context.Context, replyToken, text string, items []QuickReplyItem) error {
	msg := TextMessage{Type: MessageText, Text: text}
	if len(items) > 0 {
		msg.QuickReply = &QuickReply{Items: items}
	}
	return c.reply(ctx, ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []TextMessage{msg},
	})
}

func (c *Client) reply(ctx context.Context, msg ReplyMessageRequest) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	url := c.baseURL + "/v2/bot/message/reply"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Line-Request-Id"),
		}
		var er errorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Message != "" {
			apiErr.Message = er.Message
			apiErr.Details = er.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}
	return nil
}
