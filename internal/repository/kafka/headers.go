package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderContentType = "content-type"
	HeaderMessageType = "proto-message"

	contentTypeProto = "application/x-protobuf"
)

// headerCarrier lets the otel propagator read and write trace context
// directly on a message's headers.
type headerCarrier struct{ hs *[]kafka.Header }

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(k string) string {
	for _, h := range *c.hs {
		if h.Key == k {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(k, v string) {
	for i, h := range *c.hs {
		if h.Key == k {
			(*c.hs)[i].Value = []byte(v)
			return
		}
	}
	*c.hs = append(*c.hs, kafka.Header{Key: k, Value: []byte(v)})
}

func (c headerCarrier) Keys() []string {
	ks := make([]string, len(*c.hs))
	for i, h := range *c.hs {
		ks[i] = h.Key
	}
	return ks
}
