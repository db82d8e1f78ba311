// Command tradesim runs the turn-based manufacturing economy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/tradeworld/internal/api"
	"github.com/talgya/tradeworld/internal/config"
	"github.com/talgya/tradeworld/internal/engine"
	"github.com/talgya/tradeworld/internal/persistence"
	"github.com/talgya/tradeworld/internal/phi"
	"github.com/talgya/tradeworld/internal/world"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	app := &cli.App{
		Name:    "tradesim",
		Usage:   "turn-based manufacturing economy",
		Version: version,
		Action:  runServer,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "advance the clock in real time and serve the HTTP API",
				Action: runServer,
			},
			{
				Name:  "simulate",
				Usage: "run a fixed number of days headless and print a summary",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Aliases: []string{"n"}, Value: 30, Usage: "days to simulate"},
				},
				Action: runHeadless,
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "tradesim %s (%s)\n", version, commit)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("tradesim failed", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration, installs the logger and generates the world.
func setup() (config.Config, *engine.Simulation, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	level, _ := cfg.Level()
	slog.SetDefault(newLogger(cfg.LogFormat, level))

	slog.Info("golden-ratio pricing constants",
		"psyche", fmt.Sprintf("%.5f", phi.Psyche),
		"agnosis", fmt.Sprintf("%.5f", phi.Agnosis),
	)

	spec := world.DefaultSpec()
	if cfg.WorldFile != "" {
		if spec, err = world.LoadSpec(cfg.WorldFile); err != nil {
			return cfg, nil, err
		}
		slog.Info("world loaded", "file", cfg.WorldFile)
	}

	gen := world.DefaultGenConfig()
	gen.Seed = cfg.Seed
	gen.Variation = cfg.Variation
	w, err := world.Generate(gen, spec)
	if err != nil {
		return cfg, nil, errors.Wrap(err, "generate world")
	}

	policy, err := cfg.Policy()
	if err != nil {
		return cfg, nil, err
	}
	sim, err := engine.NewSimulation(w.Catalog, w.Manufacturers, policy)
	if err != nil {
		return cfg, nil, err
	}
	sim.AddSink(engine.LogSink{Logger: slog.Default()})

	t := sim.Totals()
	slog.Info("world generated",
		"seed", cfg.Seed,
		"items", len(w.Catalog.Items()),
		"manufacturers", t.Manufacturers,
		"workers", t.Workers,
		"money", t.Money.String(),
	)
	return cfg, sim, nil
}

// newLogger picks a text handler on a terminal and JSON otherwise.
func newLogger(format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openArchive opens the archive and registers a run, or returns nil when no
// database is configured.
func openArchive(cfg config.Config) (*persistence.DB, uuid.UUID, error) {
	if cfg.DBPath == "" {
		return nil, uuid.Nil, nil
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, uuid.Nil, err
	}
	run, err := db.BeginRun(cfg.Seed, time.Now())
	if err != nil {
		db.Close()
		return nil, uuid.Nil, err
	}
	slog.Info("archive opened", "path", cfg.DBPath, "run", run)
	return db, run, nil
}

func archiveDay(db *persistence.DB, run uuid.UUID, r engine.DayReport) {
	if db == nil {
		return
	}
	if err := db.SaveDay(run, r); err != nil {
		slog.Error("archive write failed", "day", r.Day, "error", err)
	}
}

func runServer(c *cli.Context) error {
	cfg, sim, err := setup()
	if err != nil {
		return err
	}
	db, run, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	eng := engine.NewEngine(cfg.TurnInterval)
	eng.OnDay = func(ctx context.Context, day uint64) {
		archiveDay(db, run, sim.RunDay(ctx, day))
	}

	if cfg.AdminKey == "" {
		slog.Warn("TRADESIM_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	srv := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Run:      run,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
		Version:  version,
		Commit:   commit,
		Started:  time.Now(),
	}
	if db != nil {
		srv.DB = db
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	t := sim.Totals()
	fmt.Printf("Simulation stopped after %s days. Money supply %s.\n", humanize.Comma(int64(t.Day)), t.Money)
	return nil
}

func runHeadless(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		return errors.Errorf("days must be positive, got %d", days)
	}
	cfg, sim, err := setup()
	if err != nil {
		return err
	}
	db, run, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var trades, volume int
	eng := engine.NewEngine(0)
	eng.OnDay = func(ctx context.Context, day uint64) {
		r := sim.RunDay(ctx, day)
		archiveDay(db, run, r)
		trades += len(r.Trades)
		for _, t := range r.Trades {
			volume += t.Quantity
		}
	}
	for i := 0; i < days; i++ {
		if ctx.Err() != nil {
			slog.Info("interrupted", "day", eng.Clock.Day())
			break
		}
		eng.Turn(ctx, time.Now())
	}

	t := sim.Totals()
	out := c.App.Writer
	fmt.Fprintf(out, "\nSimulated %d days: %s trades, %s units traded\n",
		t.Day, humanize.Comma(int64(trades)), humanize.Comma(int64(volume)))
	fmt.Fprintf(out, "Money supply %s across %d manufacturers and %d workers\n",
		t.Money, t.Manufacturers, t.Workers)
	_, prices := sim.TodaysPrices()
	for _, p := range prices {
		fmt.Fprintf(out, "  %-8s %s\n", p.Item.Name, p.Stats)
	}
	return nil
}
