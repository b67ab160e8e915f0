package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Line-Signature"
	maxBodyBytes    = 1 << 20
)

// EventHandler is called for each dispatched event with the request context.
type EventHandler func(ctx context.Context, ev Event)

type WebhookHandler struct {
	channelSecret []byte
	onText        EventHandler
	onPostback    EventHandler
	log           *zap.Logger
}

func NewWebhookHandler(channelSecret string, onText, onPostback EventHandler, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: []byte(channelSecret),
		onText:        onText,
		onPostback:    onPostback,
		log:           log.Named("webhook"),
	}
}

// Sign returns the base64 HMAC-SHA256 of body, as LINE puts in X-Line-Signature.
// Reference: https://developers.line.biz/en/reference/messaging-api/#signature-validation
func Sign(channelSecret, body []byte) string {
	mac := hmac.New(sha256.New, channelSecret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body in constant time.
func VerifySignature(channelSecret, body []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, channelSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// HandleCallback verifies and dispatches a webhook POST.
// Unauthenticated requests get 400; everything else is acknowledged with 200.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("failed to read body", zap.Error(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(h.channelSecret, body, r.Header.Get(SignatureHeader)) {
		h.log.Warn("rejected request", zap.Error(ErrInvalidSignature), zap.String("remote", r.RemoteAddr))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var payload CallbackRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Error("failed to decode payload", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	// Events are handled inline; the 200 is written after the last reply call returns.
	ctx := r.Context()
	for _, ev := range payload.Events {
		switch {
		case ev.Type == EventMessage && ev.Message != nil && ev.Message.Type == MessageText:
			h.onText(ctx, ev)
		case ev.Type == EventPostback && ev.Postback != nil:
			h.onPostback(ctx, ev)
		default:
			h.log.Debug("skipping event", zap.String("type", ev.Type), zap.String("event_id", ev.WebhookEventID))
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
