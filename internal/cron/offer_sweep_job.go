package cron

import (
	"context"
	"fmt"

	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
)

// OfferSweepJobParams configure the route offer expiry sweep.
type OfferSweepJobParams struct {
	Logger *logger.Logger
	Offers offerSweeper
}

type offerSweeper interface {
	SweepExpired(ctx context.Context) (*routeoffers.SweepResult, error)
}

// NewOfferSweepJob constructs the job that expires lapsed route offers and
// moves each route to the next candidate.
func NewOfferSweepJob(params OfferSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer service required")
	}
	return &offerSweepJob{
		logg:   params.Logger,
		offers: params.Offers,
	}, nil
}

type offerSweepJob struct {
	logg   *logger.Logger
	offers offerSweeper
}

func (j *offerSweepJob) Name() string { return "offer-sweep" }

func (j *offerSweepJob) Run(ctx context.Context) error {
	result, err := j.offers.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("offer sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":   result.Expired,
		"reoffered": result.Reoffered,
		"escalated": result.Escalated,
	})
	j.logg.Info(logCtx, "offer sweep complete")
	return nil
}
