package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/pinglog"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/NordCoder/netwatch/internal/obs"
	"github.com/NordCoder/netwatch/internal/services/scheduler/repo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrPersist marks a tick whose transaction did not commit.
var ErrPersist = errors.New("persist tick results")

type Campaigner interface {
	Run(ctx context.Context, addresses []string, settings probe.Settings, onProgress probe.ProgressFunc) []probe.Result
}

type Usecase struct {
	Endpoints repo.EndpointStore
	Settings  repo.SettingsStore
	Logs      repo.LogSink
	Journal   repo.TransitionJournal // optional
	Tx        repo.Transactor
	Campaign  Campaigner
	Sink      notification.Sink // optional
	Log       *zap.Logger
}

func NewUC(
	endpoints repo.EndpointStore,
	settings repo.SettingsStore,
	logs repo.LogSink,
	journal repo.TransitionJournal,
	tx repo.Transactor,
	campaign Campaigner,
	sink notification.Sink,
	log *zap.Logger,
) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		Endpoints: endpoints,
		Settings:  settings,
		Logs:      logs,
		Journal:   journal,
		Tx:        tx,
		Campaign:  campaign,
		Sink:      sink,
		Log:       log.With(zap.String("component", "scheduler.uc")),
	}
}

type TickReport struct {
	ID          string              `json:"id"`
	Started     time.Time           `json:"started"`
	Took        time.Duration       `json:"took"`
	Probed      int                 `json:"probed"`
	Transitions int                 `json:"transitions"`
	Counts      notification.Counts `json:"counts"`
}

func (u *Usecase) Tick(ctx context.Context) (TickReport, error) {
	rep := TickReport{ID: uuid.NewString(), Started: time.Now().UTC()}
	defer func() { rep.Took = time.Since(rep.Started) }()

	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.tick", trace.WithAttributes(attribute.String("tick.id", rep.ID)))
	defer span.End()
	log := obs.WithTrace(ctx, u.logger()).With(zap.String("tick_id", rep.ID))

	eps, err := u.Endpoints.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list endpoints")
		return rep, fmt.Errorf("list active endpoints: %w", err)
	}
	s, err := u.Settings.GetCurrent(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load settings")
		return rep, fmt.Errorf("load settings: %w", err)
	}
	s = s.Normalize()
	span.SetAttributes(attribute.Int("tick.endpoints", len(eps)))

	if len(eps) == 0 {
		u.publish(ctx, notification.DashboardUpdate(rep.Counts))
		return rep, nil
	}

	addresses := uniqueAddresses(eps)
	results := u.Campaign.Run(ctx, addresses, s, func(pct float64, chunk, total int) {
		log.Debug("tick progress", zap.Float64("percent", pct), zap.Int("chunk", chunk), zap.Int("chunks", total))
	})
	rep.Probed = len(results)

	byAddr := make(map[string]probe.Result, len(results))
	for _, r := range results {
		byAddr[r.Address] = r
	}

	type update struct {
		ep  *endpoint.Endpoint
		res probe.Result
	}
	updates := make([]update, 0, len(eps))
	var transitions []notification.Transition
	for _, ep := range eps {
		r, ok := byAddr[ep.Address]
		if !ok {
			// no result: the endpoint keeps its status
			rep.Counts.Add(ep.LastStatus)
			continue
		}
		rep.Counts.Add(r.Status)
		updates = append(updates, update{ep: ep, res: r})
		if ep.LastStatus != r.Status {
			transitions = append(transitions, notification.Transition{
				EndpointID: ep.ID,
				Address:    ep.Address,
				Group:      ep.Group,
				Old:        ep.LastStatus,
				New:        r.Status,
				At:         r.At,
				LatencyMS:  r.LatencyMS,
			})
		}
	}

	cctx, cspan := tr.Start(ctx, "scheduler.commit", trace.WithAttributes(
		attribute.Int("commit.updates", len(updates)),
		attribute.Int("commit.transitions", len(transitions)),
	))
	err = u.Tx.WithTx(cctx, func(ctx context.Context) error {
		for _, up := range updates {
			if err := u.Endpoints.UpdateStatus(ctx, up.ep.ID, up.res.Status, up.res.At); err != nil {
				return fmt.Errorf("update endpoint %d: %w", up.ep.ID, err)
			}
			if err := u.Logs.Append(ctx, &pinglog.Entry{
				EndpointID: up.ep.ID,
				Status:     up.res.Status,
				LatencyMS:  up.res.LatencyMS,
				At:         up.res.At,
				Error:      up.res.Error,
			}); err != nil {
				return fmt.Errorf("append log %d: %w", up.ep.ID, err)
			}
		}
		if u.Journal == nil {
			return nil
		}
		for _, t := range transitions {
			if err := u.Journal.Enqueue(ctx, t); err != nil {
				return fmt.Errorf("enqueue transition %d: %w", t.EndpointID, err)
			}
		}
		return nil
	})
	if err != nil {
		cspan.RecordError(err)
		cspan.SetStatus(codes.Error, "commit")
		cspan.End()
		span.RecordError(err)
		mCommitFailures.Inc()
		log.Error("tick rolled back", zap.Int("updates", len(updates)), zap.Error(err))
		return rep, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	cspan.End()

	rep.Transitions = len(transitions)
	mTransitions.Add(float64(len(transitions)))
	span.SetAttributes(attribute.Int("tick.transitions", len(transitions)))

	if len(transitions) > 0 {
		u.publish(ctx, notification.StatusChanges(transitions))
	}
	u.publish(ctx, notification.DashboardUpdate(rep.Counts))

	log.Info("tick done",
		zap.Int("endpoints", len(eps)),
		zap.Int("up", rep.Counts.Up),
		zap.Int("down", rep.Counts.Down),
		zap.Int("error", rep.Counts.Error),
		zap.Int("transitions", len(transitions)),
	)
	return rep, nil
}

// RunOnce probes addresses with the given settings without touching storage.
func (u *Usecase) RunOnce(ctx context.Context, addresses []string, settings probe.Settings, onProgress probe.ProgressFunc) []probe.Result {
	return u.Campaign.Run(ctx, addresses, settings.Normalize(), onProgress)
}

func (u *Usecase) publish(ctx context.Context, ev notification.Event) {
	if u.Sink == nil {
		return
	}
	u.Sink.Publish(ctx, ev)
}

func (u *Usecase) logger() *zap.Logger {
	if u.Log == nil {
		return zap.NewNop()
	}
	return u.Log
}

func uniqueAddresses(eps []*endpoint.Endpoint) []string {
	seen := make(map[string]struct{}, len(eps))
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		if _, ok := seen[ep.Address]; ok {
			continue
		}
		seen[ep.Address] = struct{}{}
		out = append(out, ep.Address)
	}
	return out
}
