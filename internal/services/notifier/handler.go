package notifier

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"go.uber.org/zap"
)

// Handler turns one status transition into e-mail for every recipient and
// records each delivery.
type Handler struct {
	Recipients []string
	OnlyGroups []string
	Out        notification.EmailSender
	Store      notification.Repo // optional
	Clock      notification.Clock
	Log        *zap.Logger
}

func Subject(t notification.Transition) string {
	return fmt.Sprintf("%s is %s (was %s)", t.Address, strings.ToUpper(string(t.New)), t.Old)
}

func Body(t notification.Transition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Endpoint %s", t.Address)
	if t.Group != "" {
		fmt.Fprintf(&b, " (group %s)", t.Group)
	}
	fmt.Fprintf(&b, " changed status: %s -> %s at %s.\n", t.Old, t.New, t.At.UTC().Format(time.RFC3339))
	if t.LatencyMS != nil {
		fmt.Fprintf(&b, "Round-trip time: %.1f ms.\n", *t.LatencyMS)
	}
	b.WriteString("\n-- netwatch\n")
	return b.String()
}

// wanted drops transitions nobody should be paged for: the first observation
// of an endpoint going up, and groups outside OnlyGroups.
func (h *Handler) wanted(t notification.Transition) bool {
	if t.Old == probe.StatusUnknown && t.New == probe.StatusUp {
		return false
	}
	if len(h.OnlyGroups) > 0 && !slices.Contains(h.OnlyGroups, t.Group) {
		return false
	}
	return true
}

func (h *Handler) HandleTransition(ctx context.Context, t notification.Transition) error {
	mConsumed.Inc()
	if h.Log == nil {
		h.Log = zap.NewNop()
	}
	log := h.Log.With(zap.Int64("endpoint_id", t.EndpointID), zap.String("address", t.Address))
	if !h.wanted(t) {
		log.Debug("transition skipped", zap.String("old", string(t.Old)), zap.String("new", string(t.New)))
		return nil
	}

	subject, body := Subject(t), Body(t)
	var errs []error
	attempted := 0
	for _, to := range h.Recipients {
		if h.alreadySent(ctx, t, to, log) {
			continue
		}
		attempted++
		if err := h.Out.Send(ctx, to, subject, body); err != nil {
			mErrors.WithLabelValues("send").Inc()
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
			continue
		}
		mSent.Inc()

		if h.Store == nil {
			continue
		}
		err := h.Store.Create(ctx, &notification.Notification{
			EndpointID:   t.EndpointID,
			Recipient:    to,
			Type:         "email",
			SentAt:       h.Clock.Now().UTC(),
			Payload:      body,
			TransitionAt: t.At.UTC(),
		})
		if err != nil {
			// mail is already out; redelivering would duplicate it
			mErrors.WithLabelValues("store").Inc()
			log.Warn("record notification", zap.String("recipient", to), zap.Error(err))
		}
	}
	// a partial failure is not retried for the same reason; recipients
	// delivered on an earlier attempt do not count
	if len(errs) > 0 && len(errs) == attempted {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		log.Warn("notification not delivered", zap.Error(err))
	}
	return nil
}

// alreadySent is true when the store has a record for this transition and
// recipient, which happens when kafka redelivers a message. A store error
// counts as not sent: a duplicate mail beats a missed one.
func (h *Handler) alreadySent(ctx context.Context, t notification.Transition, to string, log *zap.Logger) bool {
	if h.Store == nil {
		return false
	}
	sent, err := h.Store.Sent(ctx, t.EndpointID, to, t.At.UTC())
	if err != nil {
		mErrors.WithLabelValues("store").Inc()
		log.Warn("check notification history", zap.String("recipient", to), zap.Error(err))
		return false
	}
	if sent {
		mDuplicates.Inc()
		log.Info("notification already sent", zap.String("recipient", to))
	}
	return sent
}
