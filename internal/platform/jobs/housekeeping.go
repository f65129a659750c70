package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	JobPruneDrafts      = "prune-drafts"
	JobPurgeProtocols   = "purge-protocols"
	JobPruneRateLimiter = "prune-rate-limiter"
)

type DraftPruner interface {
	Prune(ctx context.Context, ttl time.Duration) (int64, error)
}

type ProtocolPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type BucketPruner interface {
	Prune() int
}

// Tenants lists organizations; InTenant runs fn against one organization's
// schema. db.TenantSchemas and db.InTenant satisfy them.
type (
	Tenants  func(ctx context.Context) ([]string, error)
	InTenant func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
)

// PruneDrafts deletes local drafts older than ttl.
func PruneDrafts(p DraftPruner, ttl time.Duration) Func {
	return func(ctx context.Context) error {
		_, err := p.Prune(ctx, ttl)
		return err
	}
}

// PurgeProtocols deletes protocols past retention in every organization.
// A failing organization does not stop the others.
func PurgeProtocols(list Tenants, in InTenant, p ProtocolPurger, logger zerolog.Logger) Func {
	return func(ctx context.Context) error {
		tenants, err := list(ctx)
		if err != nil {
			return err
		}

		var errs []error
		var total int64
		for _, tenantID := range tenants {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			err := in(ctx, tenantID, func(ctx context.Context) error {
				n, err := p.PurgeExpired(ctx)
				total += n
				if n > 0 {
					logger.Info().Str("tenant_id", tenantID).Int64("deleted", n).Msg("purged expired protocols")
				}
				return err
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			}
		}
		logger.Debug().Int("tenants", len(tenants)).Int64("deleted", total).Msg("retention purge done")
		return errors.Join(errs...)
	}
}

// PruneRateLimiter drops buckets of clients that went quiet.
func PruneRateLimiter(p BucketPruner) Func {
	return func(context.Context) error {
		p.Prune()
		return nil
	}
}
