package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collect struct {
	mu  sync.Mutex
	got []notification.Event
}

func (c *collect) Publish(_ context.Context, ev notification.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ev)
}

func (c *collect) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

type panicky struct{}

func (panicky) Publish(context.Context, notification.Event) { panic("socket gone") }

func TestOutbox_FansOutInOrder(t *testing.T) {
	a, b := &collect{}, &collect{}
	o := New(8, nil, a, panicky{}, b)

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)

	o.Publish(ctx, notification.StatusChanges([]notification.Transition{{EndpointID: 1}}))
	o.Publish(ctx, notification.DashboardUpdate(notification.Counts{Total: 1, Up: 1}))

	assert.Eventually(t, func() bool { return a.len() == 2 && b.len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-o.Done()

	assert.Equal(t, notification.EventStatusChanges, a.got[0].Type)
	assert.Equal(t, notification.EventDashboardUpdate, a.got[1].Type)
	assert.Equal(t, a.got, b.got)
}

func TestOutbox_DropsWhenFull(t *testing.T) {
	sink := &collect{}
	o := New(2, nil, sink)
	before := testutil.ToFloat64(mDropped.WithLabelValues(string(notification.EventDashboardUpdate)))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			o.Publish(context.Background(), notification.DashboardUpdate(notification.Counts{Total: i}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}

	after := testutil.ToFloat64(mDropped.WithLabelValues(string(notification.EventDashboardUpdate)))
	assert.Equal(t, 3.0, after-before)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o.Run(ctx)
	require.Equal(t, 2, sink.len())
	assert.Equal(t, 0, sink.got[0].Counts.Total)
	assert.Equal(t, 1, sink.got[1].Counts.Total)
}

func TestOutbox_PublishSurvivesCancelledContext(t *testing.T) {
	sink := &collect{}
	o := New(1, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o.Publish(ctx, notification.DashboardUpdate(notification.Counts{}))

	runCtx, stop := context.WithCancel(context.Background())
	stop()
	o.Run(runCtx)
	require.Equal(t, 1, sink.len())
}
