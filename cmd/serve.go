package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/storepos/internal/api"
	"github.com/storepos/internal/config"
	"github.com/storepos/internal/database"
	"github.com/storepos/internal/jobqueue"
	"github.com/storepos/internal/licensing"
)

// ServeCommand returns the CLI command for starting the licence service
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the licence service",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the licence service (overrides server.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, closer, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := licensing.NewService(repo)
	if _, err := svc.LoadOrInit(ctx); err != nil {
		return fmt.Errorf("failed to initialise license record: %w", err)
	}

	opts := []api.ServerOption{api.WithActivationRate(cfg.Server.ActivationRatePerMinute)}
	if cfg.Server.JobQueue {
		pool, err := database.NewPool(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		queue, err := jobqueue.NewJobQueue(pool, svc, jobqueue.DefaultQueueConfig())
		if err != nil {
			return err
		}
		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer func() {
			if err := queue.Stop(context.Background()); err != nil {
				log.Warn().Err(err).Msg("job queue did not stop cleanly")
			}
		}()
		opts = append(opts, api.WithReconciler(queue))
	}

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}
	return api.NewServer(port, svc, opts...).Start(ctx)
}

// openRepository picks Postgres when a database URL is configured and the
// in-memory repository otherwise.
func openRepository(ctx context.Context, cfg *config.Config) (licensing.Repository, func(), error) {
	if cfg.Server.DatabaseURL == "" {
		log.Warn().Msg("no database configured; license data is kept in memory and lost on exit")
		return licensing.NewMemoryRepository(), func() {}, nil
	}
	db, err := database.NewDB(ctx, cfg.Server.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	storage := licensing.NewStorage(db)
	if err := storage.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate license schema: %w", err)
	}
	return storage, func() { db.Close() }, nil
}
