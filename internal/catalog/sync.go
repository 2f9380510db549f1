package catalog

import (
	"context"
	"errors"
	"log/slog"
)

// Sync updates every target under its configured policies. A failing target
// does not stop the others; all failures are returned joined.
func Sync(ctx context.Context, u *Updater, targets []Target, logger *slog.Logger) error {
	var errs []error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := u.Update(ctx, t, t.Self, t.Children)
		if err != nil {
			logger.Warn("sync: collection update failed",
				slog.String("collection", t.Name),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		logger.Info("sync: collection updated",
			slog.String("collection", t.Name),
			slog.Bool("rebuilt", res.Rebuilt),
			slog.Int("nodes", res.Stats.Nodes),
			slog.Int("rebuilt_nodes", res.Stats.Rebuilt),
			slog.Int("failed", res.Stats.Failed))
	}
	return errors.Join(errs...)
}
