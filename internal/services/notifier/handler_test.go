package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	kafkax "github.com/NordCoder/netwatch/internal/repository/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/proto"
)

type sentMail struct{ to, subject, body string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type fakeStore struct {
	created []*notification.Notification
	err     error
}

func (f *fakeStore) Create(_ context.Context, n *notification.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeStore) ListByEndpoint(context.Context, int64, int) ([]*notification.Notification, error) {
	return f.created, nil
}

func (f *fakeStore) Sent(_ context.Context, id int64, to string, at time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, n := range f.created {
		if n.EndpointID == id && n.Recipient == to && n.TransitionAt.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func down() notification.Transition {
	return notification.Transition{
		EndpointID: 7, Address: "10.1.1.1", Group: "core",
		Old: probe.StatusUp, New: probe.StatusDown, At: at,
	}
}

func newHandler(t *testing.T, s *fakeSender, st *fakeStore) *Handler {
	h := &Handler{
		Recipients: []string{"a@x.io", "b@x.io"},
		Out:        s,
		Clock:      fixedClock{at.Add(time.Second)},
		Log:        zaptest.NewLogger(t),
	}
	if st != nil {
		h.Store = st
	}
	return h
}

func TestHandleTransition_MailsEveryRecipient(t *testing.T) {
	s, st := &fakeSender{}, &fakeStore{}
	h := newHandler(t, s, st)

	require.NoError(t, h.HandleTransition(context.Background(), down()))

	require.Len(t, s.sent, 2)
	assert.Equal(t, "a@x.io", s.sent[0].to)
	assert.Equal(t, "10.1.1.1 is DOWN (was up)", s.sent[0].subject)
	assert.Contains(t, s.sent[0].body, "(group core)")
	assert.Contains(t, s.sent[0].body, "up -> down at 2026-03-01T12:00:00Z")

	require.Len(t, st.created, 2)
	assert.Equal(t, int64(7), st.created[1].EndpointID)
	assert.Equal(t, "b@x.io", st.created[1].Recipient)
	assert.Equal(t, "email", st.created[1].Type)
	assert.Equal(t, at.Add(time.Second), st.created[1].SentAt)
}

func TestHandleTransition_SkipsFirstUp(t *testing.T) {
	s := &fakeSender{}
	h := newHandler(t, s, nil)
	tr := down()
	tr.Old, tr.New = probe.StatusUnknown, probe.StatusUp

	require.NoError(t, h.HandleTransition(context.Background(), tr))
	assert.Empty(t, s.sent)
}

func TestHandleTransition_GroupFilter(t *testing.T) {
	s := &fakeSender{}
	h := newHandler(t, s, nil)
	h.OnlyGroups = []string{"edge"}

	require.NoError(t, h.HandleTransition(context.Background(), down()))
	assert.Empty(t, s.sent)

	h.OnlyGroups = []string{"edge", "core"}
	require.NoError(t, h.HandleTransition(context.Background(), down()))
	assert.Len(t, s.sent, 2)
}

func TestHandleTransition_PartialFailureIsNotAnError(t *testing.T) {
	s := &fakeSender{fail: map[string]error{"a@x.io": errors.New("mailbox full")}}
	st := &fakeStore{}
	h := newHandler(t, s, st)

	require.NoError(t, h.HandleTransition(context.Background(), down()))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "b@x.io", s.sent[0].to)
	assert.Len(t, st.created, 1)
}

func TestHandleTransition_AllFailed(t *testing.T) {
	boom := errors.New("smtp down")
	s := &fakeSender{fail: map[string]error{"a@x.io": boom, "b@x.io": boom}}
	h := newHandler(t, s, &fakeStore{})

	err := h.HandleTransition(context.Background(), down())
	require.ErrorIs(t, err, boom)
}

func TestHandleTransition_StoreFailureKeepsGoing(t *testing.T) {
	s := &fakeSender{}
	h := newHandler(t, s, &fakeStore{err: errors.New("db")})

	require.NoError(t, h.HandleTransition(context.Background(), down()))
	assert.Len(t, s.sent, 2)
}

func TestHandleTransition_RedeliveryIsDeduplicated(t *testing.T) {
	s := &fakeSender{fail: map[string]error{"b@x.io": errors.New("greylisted")}}
	st := &fakeStore{}
	h := newHandler(t, s, st)

	require.NoError(t, h.HandleTransition(context.Background(), down()))
	require.Len(t, st.created, 1)
	assert.Equal(t, at, st.created[0].TransitionAt)

	delete(s.fail, "b@x.io")
	require.NoError(t, h.HandleTransition(context.Background(), down()))
	require.Len(t, s.sent, 2)
	assert.Equal(t, "b@x.io", s.sent[1].to)

	later := down()
	later.At = at.Add(time.Minute)
	require.NoError(t, h.HandleTransition(context.Background(), later))
	assert.Len(t, s.sent, 4)
}

func TestHandleTransition_RedeliveryWithOnlyFailuresLeftIsAnError(t *testing.T) {
	s := &fakeSender{fail: map[string]error{"b@x.io": errors.New("mailbox full")}}
	st := &fakeStore{}
	h := newHandler(t, s, st)

	require.NoError(t, h.HandleTransition(context.Background(), down()))
	require.Len(t, st.created, 1)
	assert.Equal(t, "a@x.io", st.created[0].Recipient)

	err := h.HandleTransition(context.Background(), down())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b@x.io")
	assert.Len(t, s.sent, 1, "a@x.io is not mailed twice")
}

func TestBody_Latency(t *testing.T) {
	tr := down()
	tr.New = probe.StatusUp
	ms := 12.345
	tr.LatencyMS = &ms
	tr.Group = ""

	b := Body(tr)
	assert.Contains(t, b, "Round-trip time: 12.3 ms.")
	assert.NotContains(t, b, "group")
}

type replaySub struct{ msgs [][]byte }

func (r replaySub) Consume(ctx context.Context, h kafkax.Handler) error {
	for _, m := range r.msgs {
		if err := h(ctx, nil, m); err != nil {
			return err
		}
	}
	return context.Canceled
}

func TestController_Run(t *testing.T) {
	good, err := kafkax.EncodeTransition(down())
	require.NoError(t, err)
	goodRaw, err := proto.Marshal(good)
	require.NoError(t, err)

	bad := down()
	bad.EndpointID = 0
	badS, err := kafkax.EncodeTransition(bad)
	require.NoError(t, err)
	badRaw, err := proto.Marshal(badS)
	require.NoError(t, err)

	s := &fakeSender{}
	c := &Controller{
		Log: zaptest.NewLogger(t),
		Sub: replaySub{msgs: [][]byte{badRaw, goodRaw}},
		UC:  newHandler(t, s, nil),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, s.sent, 2)
}
