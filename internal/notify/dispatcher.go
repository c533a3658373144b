package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
)

// Result aggregates per-effect outcomes. Failed effects never abort the
// rest of the batch; callers log the combined error and move on.
type Result struct {
	MessagesSent int
	InAppWritten int
	InAppGrouped int
	Err          error
}

// Failed reports whether any effect in the batch failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Dispatcher performs an effect list built by the pure planners.
type Dispatcher interface {
	Deliver(ctx context.Context, effects Effects) Result
}

type dispatcher struct {
	repo   Repository
	sender messaging.Sender
	log    *logger.Logger
}

// NewDispatcher builds the effect executor.
func NewDispatcher(repo Repository, sender messaging.Sender, log *logger.Logger) (Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &dispatcher{repo: repo, sender: sender, log: log}, nil
}

// Deliver sends every outbound message and writes every in-app row,
// isolating failures per effect so one bad phone number or provider hiccup
// cannot block the rest of the batch.
func (d *dispatcher) Deliver(ctx context.Context, effects Effects) Result {
	var result Result
	for _, msg := range effects.Messages {
		if err := d.sender.Send(ctx, msg); err != nil {
			d.log.Error(ctx, "notification message send failed", err)
			result.Err = multierr.Append(result.Err, fmt.Errorf("send to %s: %w", msg.To, err))
			continue
		}
		result.MessagesSent++
	}

	for _, effect := range effects.InApp {
		grouped, err := d.writeInApp(ctx, effect)
		if err != nil {
			d.log.Error(ctx, "in-app notification write failed", err)
			result.Err = multierr.Append(result.Err, fmt.Errorf("in-app for %s: %w", effect.WorkerID, err))
			continue
		}
		if grouped {
			result.InAppGrouped++
		} else {
			result.InAppWritten++
		}
	}
	return result
}

// writeInApp inserts a notification row, folding it into an existing unread
// row with the same group key when the type supports grouping.
func (d *dispatcher) writeInApp(ctx context.Context, effect InAppEffect) (grouped bool, err error) {
	if effect.Type.SupportsGrouping() && effect.GroupKey != nil {
		existing, err := d.repo.FindUnreadGroup(ctx, effect.WorkerID, effect.Type, *effect.GroupKey)
		if err != nil {
			return false, err
		}
		if existing != nil {
			return true, d.repo.BumpGroup(ctx, existing.ID, effect.Message)
		}
	}
	return false, d.repo.Create(ctx, &models.Notification{
		WorkerID: effect.WorkerID,
		Type:     effect.Type,
		Title:    effect.Title,
		Message:  effect.Message,
		Link:     effect.Link,
		GroupKey: effect.GroupKey,
	})
}
