package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartquiz/smartquiz/internal/line"
	"github.com/smartquiz/smartquiz/internal/quiz"
	"github.com/smartquiz/smartquiz/internal/session"
	"github.com/smartquiz/smartquiz/internal/store"
	"github.com/smartquiz/smartquiz/internal/survey"
)

type sentReply struct {
	token string
	text  string
	items []line.QuickReplyItem
}

type fakeReplier struct {
	mu   sync.Mutex
	sent []sentReply
	err  error
}

func (f *fakeReplier) ReplyText(_ context.Context, token, text string) error {
	return f.record(sentReply{token: token, text: text})
}

func (f *fakeReplier) ReplyQuickReply(_ context.Context, token, text string, items []line.QuickReplyItem) error {
	return f.record(sentReply{token: token, text: text, items: items})
}

func (f *fakeReplier) record(r sentReply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, r)
	return f.err
}

func (f *fakeReplier) last(t *testing.T) sentReply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeReplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type failingLedger struct{}

func (failingLedger) MarkProcessed(string, time.Time) (bool, error) { return false, errors.New("disk full") }
func (failingLedger) Prune(time.Time) (int, error)                  { return 0, nil }
func (failingLedger) Close() error                                  { return nil }

func newHandler(t *testing.T, ledger store.EventLedger) (*Handler, *fakeReplier, *session.Store) {
	t.Helper()
	sessions := session.NewStore()
	replier := &fakeReplier{}
	h := NewHandler(replier, quiz.New(survey.Default(), sessions), session.NewManager(), ledger, zap.NewNop())
	return h, replier, sessions
}

func userEvent(eventType, eventID, token string) line.Event {
	return line.Event{
		Type:           eventType,
		Mode:           "active",
		Source:         line.Source{Type: line.SourceUser, UserID: "U1"},
		WebhookEventID: eventID,
		ReplyToken:     token,
	}
}

func textEvent(id, text string) line.Event {
	ev := userEvent(line.EventMessage, id, "tok-"+id)
	ev.Message = &line.MessageContent{ID: id, Type: line.MessageText, Text: text}
	return ev
}

func postbackEvent(id, data string) line.Event {
	ev := userEvent(line.EventPostback, id, "tok-"+id)
	ev.Postback = &line.PostbackContent{Data: data}
	return ev
}

func TestHandlerWalksSurvey(t *testing.T) {
	t.Parallel()

	h, replier, sessions := newHandler(t, nil)
	ctx := context.Background()

	h.HandleText(ctx, textEvent("1", "เริ่ม"))
	q1 := replier.last(t)
	assert.Equal(t, "tok-1", q1.token)
	require.Len(t, q1.items, 4)
	assert.Equal(t, line.PostbackItem("บริการประชาชน", "A1", "การให้บริการประชาชน"), q1.items[0])

	h.HandlePostback(ctx, postbackEvent("2", "A1"))
	assert.Len(t, replier.last(t).items, 3)

	h.HandlePostback(ctx, postbackEvent("3", "B1"))
	assert.Len(t, replier.last(t).items, 7)

	h.HandlePostback(ctx, postbackEvent("4", "C1"))
	done := replier.last(t)
	assert.Equal(t, "tok-4", done.token)
	assert.Equal(t, "ผลการประเมินเบื้องต้น:\nนวัตกรรมการบริการ", done.text)
	assert.Empty(t, done.items)

	_, ok := sessions.Get("U1")
	assert.False(t, ok)
}

func TestHandlerIgnoredPostbackSendsNothing(t *testing.T) {
	t.Parallel()

	h, replier, _ := newHandler(t, nil)
	h.HandleText(context.Background(), textEvent("1", "เริ่ม"))
	h.HandlePostback(context.Background(), postbackEvent("2", "C1"))

	assert.Equal(t, 1, replier.count())
}

func TestHandlerSkipsRedeliveredEvents(t *testing.T) {
	t.Parallel()

	ledger, err := store.NewBoltStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer ledger.Close()

	h, replier, sessions := newHandler(t, ledger)
	ctx := context.Background()

	h.HandleText(ctx, textEvent("ev-1", "เริ่ม"))
	h.HandlePostback(ctx, postbackEvent("ev-2", "A1"))

	redelivered := postbackEvent("ev-2", "A1")
	redelivered.DeliveryContext.IsRedelivery = true
	h.HandlePostback(ctx, redelivered)

	assert.Equal(t, 2, replier.count())
	sess, ok := sessions.Get("U1")
	require.True(t, ok)
	assert.Equal(t, 1, sess.Step)
}

func TestHandlerProcessesWhenLedgerFails(t *testing.T) {
	t.Parallel()

	h, replier, _ := newHandler(t, failingLedger{})
	h.HandleText(context.Background(), textEvent("ev-1", "เริ่ม"))

	assert.Equal(t, 1, replier.count())
}

func TestHandlerSkipsNonUserSources(t *testing.T) {
	t.Parallel()

	h, replier, sessions := newHandler(t, nil)

	group := textEvent("1", "เริ่ม")
	group.Source = line.Source{Type: "group", GroupID: "G1"}
	h.HandleText(context.Background(), group)

	standby := textEvent("2", "เริ่ม")
	standby.Mode = "standby"
	h.HandleText(context.Background(), standby)

	assert.Zero(t, replier.count())
	assert.Zero(t, sessions.Len())
}

func TestHandlerKeepsStateWhenReplyFails(t *testing.T) {
	t.Parallel()

	h, replier, sessions := newHandler(t, nil)
	replier.err = &line.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid reply token"}

	h.HandleText(context.Background(), textEvent("1", "เริ่ม"))
	h.HandlePostback(context.Background(), postbackEvent("2", "A2"))

	sess, ok := sessions.Get("U1")
	require.True(t, ok)
	assert.Equal(t, 1, sess.Step)
}

func TestHandlerSerializesSameUser(t *testing.T) {
	t.Parallel()

	h, replier, sessions := newHandler(t, nil)
	h.HandleText(context.Background(), textEvent("0", "เริ่ม"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandlePostback(context.Background(), postbackEvent("dup", "A1"))
		}()
	}
	wg.Wait()

	// Only the first A1 is accepted; the rest find the session at step 1.
	assert.Equal(t, 2, replier.count())
	sess, _ := sessions.Get("U1")
	assert.Equal(t, 1, sess.Step)
}

func TestWebhookToHandler(t *testing.T) {
	t.Parallel()

	h, replier, _ := newHandler(t, nil)
	webhook := line.NewWebhookHandler("secret", h.HandleText, h.HandlePostback, zap.NewNop())

	body := `{"events":[{"type":"message","mode":"active","source":{"type":"user","userId":"U1"},` +
		`"webhookEventId":"e1","replyToken":"r1","message":{"id":"1","type":"text","text":"reset"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set(line.SignatureHeader, line.Sign([]byte("secret"), []byte(body)))
	w := httptest.NewRecorder()

	webhook.HandleCallback(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	got := replier.last(t)
	assert.Equal(t, "r1", got.token)
	assert.Equal(t, "Q1: ผลงานของท่านเป็นเรื่องหลักด้านใดมากที่สุด?", got.text)
}
