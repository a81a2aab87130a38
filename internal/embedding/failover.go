package embedding

import (
	"context"

	"go.uber.org/zap"
)

// Failover wraps a primary provider and falls back to a deterministic
// secondary whenever the primary errors, so a provider outage degrades
// embedding quality instead of aborting the classification pipeline.
type Failover struct {
	primary  Provider
	fallback Provider
	logger   *zap.Logger
}

// NewFailover builds the failover wrapper. The fallback must never fail;
// the hashed bag-of-tokens provider satisfies that.
func NewFailover(primary, fallback Provider, logger *zap.Logger) *Failover {
	return &Failover{primary: primary, fallback: fallback, logger: logger}
}

func (f *Failover) Dimension() int {
	if f.primary != nil {
		return f.primary.Dimension()
	}
	return f.fallback.Dimension()
}

func (f *Failover) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.primary != nil {
		v, err := f.primary.Embed(ctx, text)
		if err == nil {
			return v, nil
		}
		if f.logger != nil {
			f.logger.Warn("primary embedding provider failed, using fallback", zap.Error(err))
		}
	}
	return f.fallback.Embed(ctx, text)
}
