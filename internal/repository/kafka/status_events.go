package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/kafka"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type StatusEventsKafka struct {
	p *Producer
}

func NewStatusEventsKafka(p *Producer) *StatusEventsKafka { return &StatusEventsKafka{p: p} }

var _ kafka.StatusEvents = (*StatusEventsKafka)(nil)

func (e *StatusEventsKafka) PublishStatusChanged(ctx context.Context, t notification.Transition) error {
	s, err := EncodeTransition(t)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, KeyFromInt64(t.EndpointID), s)
}

// EncodeTransition renders t as a protobuf Struct. Field names follow the
// JSON form of notification.Transition.
func EncodeTransition(t notification.Transition) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":         t.EndpointID,
		"address":    t.Address,
		"group":      t.Group,
		"old_status": string(t.Old),
		"new_status": string(t.New),
		"timestamp":  t.At.UTC().Format(time.RFC3339Nano),
	}
	if t.LatencyMS != nil {
		fields["latency_ms"] = *t.LatencyMS
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode transition: %w", err)
	}
	return s, nil
}

// DecodeTransition is the inverse of EncodeTransition. Every failure wraps
// ErrMalformed.
func DecodeTransition(s *structpb.Struct) (notification.Transition, error) {
	f := s.GetFields()
	var t notification.Transition

	id, ok := f["id"]
	if !ok {
		return t, fmt.Errorf("%w: transition without id", ErrMalformed)
	}
	t.EndpointID = int64(id.GetNumberValue())
	t.Address = f["address"].GetStringValue()
	t.Group = f["group"].GetStringValue()
	t.Old = probe.Status(f["old_status"].GetStringValue())
	t.New = probe.Status(f["new_status"].GetStringValue())
	if !t.Old.Valid() || !t.New.Valid() {
		return t, fmt.Errorf("%w: transition %d: bad status %q -> %q", ErrMalformed, t.EndpointID, t.Old, t.New)
	}

	at, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return t, fmt.Errorf("%w: transition %d: timestamp: %w", ErrMalformed, t.EndpointID, err)
	}
	t.At = at

	if v, ok := f["latency_ms"]; ok {
		ms := v.GetNumberValue()
		t.LatencyMS = &ms
	}
	return t, nil
}

// TransitionHandler decodes status-change messages and hands them to handle.
// Undecodable payloads come back as ErrMalformed; errors from handle pass
// through untouched.
func TransitionHandler(handle func(context.Context, notification.Transition) error) Handler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		var s structpb.Struct
		if err := proto.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		t, err := DecodeTransition(&s)
		if err != nil {
			return err
		}
		return handle(ctx, t)
	}
}
