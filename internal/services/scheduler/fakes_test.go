package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/pinglog"
	"github.com/NordCoder/netwatch/internal/domain/probe"
)

// memDB stages writes per transaction and applies them on commit.
type memDB struct {
	mu          sync.Mutex
	endpoints   []*endpoint.Endpoint
	logs        []pinglog.Entry
	journal     []notification.Transition
	listErr     error
	failCommit  bool
	settings    probe.Settings
	settingsErr error
}

type txKey struct{}

type txBuf struct {
	status  map[int64]probe.Status
	at      map[int64]time.Time
	logs    []pinglog.Entry
	journal []notification.Transition
}

func (db *memDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	buf := &txBuf{status: map[int64]probe.Status{}, at: map[int64]time.Time{}}
	if err := fn(context.WithValue(ctx, txKey{}, buf)); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failCommit {
		return errors.New("commit: connection reset")
	}
	for _, ep := range db.endpoints {
		if s, ok := buf.status[ep.ID]; ok {
			at := buf.at[ep.ID]
			ep.LastStatus = s
			ep.LastProbeAt = &at
		}
	}
	db.logs = append(db.logs, buf.logs...)
	db.journal = append(db.journal, buf.journal...)
	return nil
}

func (db *memDB) ListActive(context.Context) ([]*endpoint.Endpoint, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.listErr != nil {
		return nil, db.listErr
	}
	out := make([]*endpoint.Endpoint, 0, len(db.endpoints))
	for _, ep := range db.endpoints {
		if ep.Active {
			cp := *ep
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (db *memDB) UpdateStatus(ctx context.Context, id int64, s probe.Status, at time.Time) error {
	buf, ok := ctx.Value(txKey{}).(*txBuf)
	if !ok {
		return errors.New("update outside tx")
	}
	buf.status[id] = s
	buf.at[id] = at
	return nil
}

func (db *memDB) Append(ctx context.Context, e *pinglog.Entry) error {
	buf, ok := ctx.Value(txKey{}).(*txBuf)
	if !ok {
		return errors.New("append outside tx")
	}
	buf.logs = append(buf.logs, *e)
	return nil
}

func (db *memDB) Enqueue(ctx context.Context, t notification.Transition) error {
	buf, ok := ctx.Value(txKey{}).(*txBuf)
	if !ok {
		return errors.New("enqueue outside tx")
	}
	buf.journal = append(buf.journal, t)
	return nil
}

func (db *memDB) GetCurrent(context.Context) (probe.Settings, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.settings, db.settingsErr
}

func (db *memDB) status(id int64) probe.Status {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, ep := range db.endpoints {
		if ep.ID == id {
			return ep.LastStatus
		}
	}
	return ""
}

// scripted answers every address with a fixed status.
type scripted struct {
	mu       sync.Mutex
	statuses map[string]probe.Status
	calls    int
	seen     []probe.Settings
}

func (s *scripted) Run(_ context.Context, addresses []string, settings probe.Settings, onProgress probe.ProgressFunc) []probe.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = append(s.seen, settings)
	out := make([]probe.Result, 0, len(addresses))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, a := range addresses {
		r := probe.Result{Address: a, Status: s.statuses[a], At: at}
		if r.Status == probe.StatusUp {
			ms := 1.5
			r.LatencyMS = &ms
		}
		out = append(out, r)
	}
	if onProgress != nil {
		onProgress(100, 1, 1)
	}
	return out
}

type captureSink struct {
	mu     sync.Mutex
	events []notification.Event
}

func (c *captureSink) Publish(_ context.Context, ev notification.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) all() []notification.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification.Event(nil), c.events...)
}
