package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartExpiryJobParams configure the stale cart sweeper.
type CartExpiryJobParams struct {
	Logger *logger.Logger
	Carts  cartExpirer
}

type cartExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// NewCartExpiryJob builds the cron job that closes active carts past their expiry.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &cartExpiryJob{
		logg:  params.Logger,
		carts: params.Carts,
		now:   time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg  *logger.Logger
	carts cartExpirer
	now   func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.carts.ExpireStale(ctx, now)
	if err != nil {
		return fmt.Errorf("expire stale carts: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"carts_expired": expired})
	j.logg.Info(logCtx, "cart expiry sweep complete")
	return nil
}
