package bot

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/smartquiz/smartquiz/internal/line"
	"github.com/smartquiz/smartquiz/internal/quiz"
	"github.com/smartquiz/smartquiz/internal/session"
	"github.com/smartquiz/smartquiz/internal/store"
	"github.com/smartquiz/smartquiz/internal/survey"
)

// Replier sends replies through the messaging platform.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
	ReplyQuickReply(ctx context.Context, replyToken, text string, items []line.QuickReplyItem) error
}

type Handler struct {
	replier Replier
	machine *quiz.Machine
	locks   *session.Manager
	ledger  store.EventLedger
	log     *zap.Logger
	now     func() time.Time
}

// NewHandler wires the state machine to the reply API. ledger may be nil to disable redelivery checks.
func NewHandler(r Replier, m *quiz.Machine, locks *session.Manager, ledger store.EventLedger, log *zap.Logger) *Handler {
	return &Handler{
		replier: r,
		machine: m,
		locks:   locks,
		ledger:  ledger,
		log:     log.Named("bot"),
		now:     time.Now,
	}
}

func (h *Handler) HandleText(ctx context.Context, ev line.Event) {
	h.handle(ctx, ev, func(userID string) *quiz.Reply {
		return h.machine.HandleText(userID, ev.Message.Text)
	})
}

func (h *Handler) HandlePostback(ctx context.Context, ev line.Event) {
	h.handle(ctx, ev, func(userID string) *quiz.Reply {
		return h.machine.HandlePostback(userID, survey.Code(ev.Postback.Data))
	})
}

func (h *Handler) handle(ctx context.Context, ev line.Event, step func(userID string) *quiz.Reply) {
	userID := ev.Source.UserID
	if ev.Source.Type != line.SourceUser || userID == "" {
		h.log.Debug("skipping non-user source", zap.String("source", ev.Source.Type))
		return
	}
	if ev.Mode == "standby" {
		h.log.Debug("skipping standby event", zap.String("user_id", userID))
		return
	}

	log := h.log.With(zap.String("user_id", userID), zap.String("event_id", ev.WebhookEventID))
	if !h.firstDelivery(ev, log) {
		log.Info("skipping redelivered event")
		return
	}

	_ = h.locks.WithLock(userID, func() error {
		reply := step(userID)
		if reply == nil {
			log.Debug("ignored input", zap.String("type", ev.Type))
			return nil
		}

		if err := h.send(ctx, ev.ReplyToken, reply); err != nil {
			log.Error("failed to send reply",
				zap.String("kind", string(reply.Kind)),
				zap.String("error_type", string(line.Classify(err))),
				zap.Error(err),
			)
			return nil
		}

		log.Info("replied", zap.String("kind", string(reply.Kind)), zap.Bool("terminal", reply.Terminal()))
		return nil
	})
}

// firstDelivery reports whether the event should be processed. Events are
// processed when the ledger fails.
func (h *Handler) firstDelivery(ev line.Event, log *zap.Logger) bool {
	if h.ledger == nil || ev.WebhookEventID == "" {
		return true
	}
	first, err := h.ledger.MarkProcessed(ev.WebhookEventID, h.now())
	if err != nil {
		log.Warn("event ledger unavailable", zap.Error(err))
		return true
	}
	return first
}

func (h *Handler) send(ctx context.Context, replyToken string, r *quiz.Reply) error {
	if len(r.Options) == 0 {
		return h.replier.ReplyText(ctx, replyToken, r.Text)
	}
	return h.replier.ReplyQuickReply(ctx, replyToken, r.Text, toQuickReplyItems(r.Options))
}

func toQuickReplyItems(options []survey.Option) []line.QuickReplyItem {
	return lo.Map(options, func(o survey.Option, _ int) line.QuickReplyItem {
		return line.PostbackItem(o.Label, string(o.Code), o.Text)
	})
}
