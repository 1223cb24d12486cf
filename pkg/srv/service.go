package srv

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/tuskmail/pkg/log"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts every service and blocks until ctx is done or one of them fails.
// Services are then shut down in reverse order. The first start error is
// returned.
func Run(ctx context.Context, services []Service) error {
	logger := log.FromCtx(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, service := range services {
		g.Go(func() error {
			if err := service.Start(gctx); err != nil {
				return fmt.Errorf("%T failed to start: %w", service, err)
			}
			return nil
		})
	}

	<-gctx.Done()
	err := g.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("service stopped unexpectedly")
	}

	shutdown(context.WithoutCancel(ctx), services)
	return err
}

// Shutdown stops services in reverse order, logging failures.
func shutdown(ctx context.Context, services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
