package api

import (
	"log/slog"
	"net/http"

	"github.com/kfujino/odowatch/internal/flow"
	"github.com/kfujino/odowatch/internal/models"
	"github.com/kfujino/odowatch/internal/store"
	"github.com/line/line-bot-sdk-go/v7/linebot"
)

// WebhookParser validates and decodes an incoming webhook request into its
// event batch.
type WebhookParser interface {
	ParseRequest(r *http.Request) ([]*linebot.Event, error)
}

// Dispatcher delivers one reply per inbound message, keyed by reply token.
type Dispatcher interface {
	ReplyText(replyToken, text string) error
	ReplyMenu(replyToken string, menu models.Menu) error
}

// Handler processes webhook deliveries: it resolves the sender's session,
// runs the conversation engine, persists the declared mutations, and
// dispatches the reply.
type Handler struct {
	engine     *flow.Engine
	sessions   store.SessionStore
	parser     WebhookParser
	dispatcher Dispatcher
	locks      *userLocks
}

// NewHandler wires the webhook handler.
func NewHandler(engine *flow.Engine, sessions store.SessionStore, parser WebhookParser, dispatcher Dispatcher) *Handler {
	return &Handler{
		engine:     engine,
		sessions:   sessions,
		parser:     parser,
		dispatcher: dispatcher,
		locks:      newUserLocks(),
	}
}

// Callback is the inbound webhook endpoint. It always acknowledges the
// transport with 200; there is nothing the provider could usefully retry.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	events, err := h.parser.ParseRequest(r)
	if err != nil {
		slog.Error("Webhook parse failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	slog.Debug("Webhook batch received", "events", len(events))
	for _, event := range events {
		h.handleEvent(event)
	}
	w.WriteHeader(http.StatusOK)
}

// handleEvent processes one event from the batch. Malformed or non-text
// events are skipped; the rest of the batch continues.
func (h *Handler) handleEvent(event *linebot.Event) {
	if event.Type != linebot.EventTypeMessage {
		slog.Debug("Skipping non-message event", "type", event.Type)
		return
	}
	message, ok := event.Message.(*linebot.TextMessage)
	if !ok {
		slog.Debug("Skipping non-text message event")
		return
	}
	if event.Source == nil || event.Source.UserID == "" {
		slog.Debug("Skipping message event without sender")
		return
	}
	userID := event.Source.UserID

	// Messages from the same user are serialized across the whole
	// load-mutate-save cycle; neither store variant tolerates interleaving.
	unlock := h.locks.lock(userID)
	defer unlock()

	session, err := h.sessions.GetOrCreate(userID)
	if err != nil {
		slog.Error("Session load failed", "error", err, "user_id", userID)
		return
	}

	result := h.engine.Process(session, message.Text)

	if len(result.Changed) > 0 {
		if err := h.sessions.Save(userID, session, result.Changed); err != nil {
			slog.Error("Session save failed", "error", err, "user_id", userID)
			return
		}
	}

	h.dispatch(event.ReplyToken, result.Reply)
}

// dispatch delivers the reply. A failed delivery is logged and dropped; the
// user's session mutation has already been persisted.
func (h *Handler) dispatch(replyToken string, reply models.Reply) {
	var err error
	if reply.Menu != nil {
		err = h.dispatcher.ReplyMenu(replyToken, *reply.Menu)
	} else {
		err = h.dispatcher.ReplyText(replyToken, reply.Text)
	}
	if err != nil {
		slog.Error("Reply delivery failed", "error", err)
	}
}
