package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

type Worker interface {
	Name() string
	Start(context.Context) error
}

// Group runs workers side by side. The first failure cancels the rest and Start
// returns once every worker has returned, with all failures combined.
type Group []Worker

func (g Group) Start(ctx context.Context) error {
	runCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var running multierror.Group
	for _, w := range g {
		running.Go(func() error {
			if err := w.Start(runCtx); err != nil {
				slog.Error("Worker failed, stopping the others", "name", w.Name(), logger.Err(err))
				cancelFn()
				return fmt.Errorf("%s: %w", w.Name(), err)
			}
			return nil
		})
	}

	return running.Wait().ErrorOrNil()
}
