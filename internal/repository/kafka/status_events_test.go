package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestTransitionHandler_DecodesWireMessage(t *testing.T) {
	ms := 4.25
	in := notification.Transition{
		EndpointID: 42,
		Address:    "192.0.2.10",
		Group:      "dc-1",
		Old:        probe.StatusDown,
		New:        probe.StatusUp,
		At:         time.Date(2026, 4, 5, 6, 7, 8, 9000, time.UTC),
		LatencyMS:  &ms,
	}
	s, err := EncodeTransition(in)
	require.NoError(t, err)
	wire, err := proto.Marshal(s)
	require.NoError(t, err)

	var got notification.Transition
	h := TransitionHandler(func(_ context.Context, tr notification.Transition) error {
		got = tr
		return nil
	})
	require.NoError(t, h(context.Background(), KeyFromInt64(42), wire))

	assert.Equal(t, in.EndpointID, got.EndpointID)
	assert.Equal(t, in.Address, got.Address)
	assert.Equal(t, in.Group, got.Group)
	assert.Equal(t, in.Old, got.Old)
	assert.Equal(t, in.New, got.New)
	assert.True(t, in.At.Equal(got.At))
	require.NotNil(t, got.LatencyMS)
	assert.Equal(t, ms, *got.LatencyMS)
}

func TestDecodeTransition_Rejects(t *testing.T) {
	cases := map[string]map[string]any{
		"missing id":    {"old_status": "up", "new_status": "down", "timestamp": "2026-01-01T00:00:00Z"},
		"bad status":    {"id": 1, "old_status": "up", "new_status": "sideways", "timestamp": "2026-01-01T00:00:00Z"},
		"bad timestamp": {"id": 1, "old_status": "up", "new_status": "down", "timestamp": "yesterday"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := structpb.NewStruct(fields)
			require.NoError(t, err)
			_, err = DecodeTransition(s)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeTransition_NoLatency(t *testing.T) {
	s, err := EncodeTransition(notification.Transition{
		EndpointID: 7, Old: probe.StatusUp, New: probe.StatusDown, At: time.Unix(0, 0),
	})
	require.NoError(t, err)

	got, err := DecodeTransition(s)
	require.NoError(t, err)
	assert.Nil(t, got.LatencyMS)
	assert.Equal(t, probe.StatusDown, got.New)
}

func TestTransitionHandler_ErrorClasses(t *testing.T) {
	called := false
	h := TransitionHandler(func(context.Context, notification.Transition) error {
		called = true
		return nil
	})
	err := h(context.Background(), nil, []byte{0xff, 0x01, 0x02})
	require.ErrorIs(t, err, ErrMalformed)
	assert.False(t, called)

	s, err := EncodeTransition(notification.Transition{
		EndpointID: 3, Old: probe.StatusUp, New: probe.StatusDown, At: time.Unix(10, 0),
	})
	require.NoError(t, err)
	wire, err := proto.Marshal(s)
	require.NoError(t, err)

	smtpDown := errors.New("smtp down")
	h = TransitionHandler(func(context.Context, notification.Transition) error { return smtpDown })
	err = h(context.Background(), nil, wire)
	require.ErrorIs(t, err, smtpDown)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestHeaderCarrier(t *testing.T) {
	var hs []kafka.Header
	c := headerCarrier{&hs}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set(HeaderContentType, contentTypeProto)

	require.Len(t, hs, 2)
	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", HeaderContentType}, c.Keys())
}

func TestTopicSpec_Config(t *testing.T) {
	tc := StatusTopic("netwatch.status.change", 0).withDefaults().config()
	assert.Equal(t, 1, tc.NumPartitions)
	assert.Equal(t, 1, tc.ReplicationFactor)
	require.Len(t, tc.ConfigEntries, 1)
	assert.Equal(t, "retention.ms", tc.ConfigEntries[0].ConfigName)
	assert.Equal(t, "604800000", tc.ConfigEntries[0].ConfigValue)

	assert.Empty(t, TopicSpec{Name: "x"}.withDefaults().config().ConfigEntries)
}

func TestKeyFromInt64(t *testing.T) {
	assert.Equal(t, []byte("1234"), KeyFromInt64(1234))
}
