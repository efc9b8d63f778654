// Package line implements the reply dispatcher for the LINE Messaging API.
//
// It wraps the official SDK client: webhook requests are parsed and
// signature-verified here, and replies are delivered against the reply token
// of the triggering event (one reply per inbound message).
package line

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kfujino/odowatch/internal/models"
	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// Client talks to the LINE Messaging API with the configured channel
// credentials.
type Client struct {
	bot *linebot.Client
}

// NewClient creates a LINE client. Extra SDK options (endpoint override, HTTP
// client) are passed through, which tests use to point at a local server.
func NewClient(channelSecret, channelToken string, opts ...linebot.ClientOption) (*Client, error) {
	bot, err := linebot.New(channelSecret, channelToken, opts...)
	if err != nil {
		slog.Error("Failed to create LINE client", "error", err)
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	return &Client{bot: bot}, nil
}

// ParseRequest validates the webhook signature and decodes the event batch.
func (c *Client) ParseRequest(r *http.Request) ([]*linebot.Event, error) {
	return c.bot.ParseRequest(r)
}

// ReplyText sends a plain text reply for the given reply token.
func (c *Client) ReplyText(replyToken, text string) error {
	if _, err := c.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).Do(); err != nil {
		slog.Error("LINE text reply failed", "error", err)
		return fmt.Errorf("failed to send text reply: %w", err)
	}
	slog.Debug("LINE text reply sent", "text_length", len(text))
	return nil
}

// ReplyMenu sends a buttons-template reply for the given reply token.
func (c *Client) ReplyMenu(replyToken string, menu models.Menu) error {
	actions := make([]linebot.TemplateAction, 0, len(menu.Actions))
	for _, a := range menu.Actions {
		actions = append(actions, linebot.NewMessageAction(a.Label, a.Text))
	}
	template := linebot.NewButtonsTemplate("", "", menu.Text, actions...)
	if _, err := c.bot.ReplyMessage(replyToken, linebot.NewTemplateMessage(menu.AltText, template)).Do(); err != nil {
		slog.Error("LINE menu reply failed", "error", err)
		return fmt.Errorf("failed to send menu reply: %w", err)
	}
	slog.Debug("LINE menu reply sent", "actions", len(menu.Actions))
	return nil
}
