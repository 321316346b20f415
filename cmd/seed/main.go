// Command seed imports the on-disk curriculum as the master course template.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/planea/portal/internal/course"
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/platform/config"
	"github.com/planea/portal/internal/platform/database"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, openStore); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

// storeOpener returns the course store to seed and a function releasing it.
type storeOpener func(ctx context.Context, cfg *config.Config) (course.Store, func(), error)

func run(ctx context.Context, args []string, out io.Writer, open storeOpener) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&cfg.CurriculumPath, "curriculum", cfg.CurriculumPath, "curriculum directory")
	fs.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "PostgreSQL URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		return err
	}

	store, release, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	res, err := course.SeedTemplate(ctx, store, loader)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %s: %d modules, %d topics, %d authored topics\n",
		res.TemplateID, res.Modules, res.Topics, res.Content)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (course.Store, func(), error) {
	if !cfg.UsesDatabase() {
		return nil, nil, fmt.Errorf("LEARN_DATABASE_URL or -database-url is required")
	}
	db, err := database.New(ctx, cfg.Database.URL, 2, 1)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	store, err := course.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}
