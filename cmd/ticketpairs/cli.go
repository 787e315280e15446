package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MikeSquared-Agency/ticketpairs/internal/api"
	"github.com/MikeSquared-Agency/ticketpairs/internal/classify"
	"github.com/MikeSquared-Agency/ticketpairs/internal/config"
	"github.com/MikeSquared-Agency/ticketpairs/internal/export"
	"github.com/MikeSquared-Agency/ticketpairs/internal/hermes"
	"github.com/MikeSquared-Agency/ticketpairs/internal/pipeline"
	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
	"github.com/MikeSquared-Agency/ticketpairs/internal/rt"
	"github.com/MikeSquared-Agency/ticketpairs/internal/speaker"
	"github.com/MikeSquared-Agency/ticketpairs/internal/store"
)

// newCLIApp creates the CLI application with all commands. Flag defaults come
// from cfg, so flags override the file and the environment.
func newCLIApp(cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "ticketpairs",
		Usage:   "Reconstruct support-ticket correspondence into training pairs",
		Version: Version,
		Commands: []*cli.Command{
			fetchCmd(cfg),
			bulkCmd(cfg),
			reconstructCmd(cfg),
			serveCmd(cfg),
			migrateCmd(cfg),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func outputFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: cfg.OutputDir, Usage: "Output directory"},
		&cli.StringFlag{Name: "prefix", Value: cfg.OutputPrefix, Usage: "Output file prefix"},
		&cli.Float64Flag{Name: "ratio", Value: cfg.TrainRatio, Usage: "Share of pairs in the training set"},
		&cli.Int64Flag{Name: "seed", Value: cfg.Seed, Usage: "Shuffle seed"},
		&cli.StringFlag{Name: "jsonl", Usage: "Also write every pair to this JSONL file"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Value: cfg.Workers, Usage: "Parallel workers"},
		&cli.BoolFlag{Name: "dry-run", Usage: "Do not persist the run to the database"},
		&cli.BoolFlag{Name: "publish", Usage: "Publish the run completion on NATS"},
		&cli.StringFlag{Name: "state", Value: cfg.StatePath, Usage: "Resumable state file (empty disables)"},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(cfg *config.Config) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "queue", Aliases: []string{"q"}, Value: cfg.Queue, Usage: "Queue to search"},
		&cli.StringFlag{Name: "from", Value: cfg.FromDate, Usage: "Earliest creation date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "to", Value: cfg.ToDate, Usage: "Latest creation date, YYYY-MM-DD"},
		&cli.IntFlag{Name: "window-days", Value: cfg.WindowDays, Usage: "Search window width in days"},
	}
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch ticket histories from the ticketing REST API and build pairs",
		Flags: append(flags, outputFlags(cfg)...),
		Action: func(c *cli.Context) error {
			if cfg.RTURL == "" {
				return errors.New("RT_URL is required")
			}
			client := rt.NewClient(cfg.RTURL, cfg.RTUser, cfg.RTPassword, slog.Default())
			sources, err := pipeline.WindowSources(client, c.String("queue"), c.String("from"), c.String("to"),
				c.Int("window-days"), c.Int("workers"), slog.Default())
			if err != nil {
				return err
			}
			return runBatch(c, cfg, reconstruct.ModeHistory, sources, nil)
		},
	}
}

// bulkCmd creates the bulk command.
func bulkCmd(cfg *config.Config) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "queue", Aliases: []string{"q"}, Value: cfg.Queue, Usage: "Keep only tickets routed to this queue (empty keeps all)"},
		&cli.TimestampFlag{Name: "from", Layout: pipeline.DateLayout, Usage: "Earliest record date, YYYY-MM-DD"},
		&cli.TimestampFlag{Name: "to", Layout: pipeline.DateLayout, Usage: "Latest record date, YYYY-MM-DD"},
	}
	return &cli.Command{
		Name:  "bulk",
		Usage: "Build pairs from raw mail records in the ticketing database",
		Flags: append(flags, outputFlags(cfg)...),
		Action: func(c *cli.Context) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := store.New(c.Context, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			src := &pipeline.BulkSource{
				Records: db,
				Queue:   c.String("queue"),
				Profile: classify.NewBulkProfile(cfg.Queues),
				Logger:  slog.Default(),
			}
			if t := c.Timestamp("from"); t != nil {
				src.Filter.From = *t
			}
			if t := c.Timestamp("to"); t != nil {
				src.Filter.To = *t
			}
			return runBatch(c, cfg, reconstruct.ModeBulk, []pipeline.Source{src}, db)
		},
	}
}

// runBatch runs sources through the pipeline and writes the split datasets.
// db is reused for persistence when the caller already opened it.
func runBatch(c *cli.Context, cfg *config.Config, mode reconstruct.Mode, sources []pipeline.Source, db *store.Store) error {
	ctx := c.Context
	engine := reconstruct.New(engineOptions(cfg, mode))

	var writer pipeline.RunWriter
	if cfg.DatabaseURL != "" && !c.Bool("dry-run") {
		if db == nil {
			var err error
			db, err = store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		writer = db
	}

	var pub pipeline.Publisher
	if c.Bool("publish") {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return err
		}
		defer func() {
			if err := hc.Flush(5 * time.Second); err != nil {
				slog.Warn("nats flush failed", "error", err)
			}
			hc.Close()
		}()
		pub = hc
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Workers:      c.Int("workers"),
		DryRun:       c.Bool("dry-run"),
		StatePath:    c.String("state"),
		SlackToken:   cfg.SlackBotToken,
		SlackChannel: cfg.SlackChannel,
	}, engine, writer, pub, slog.Default())

	sum, err := runner.Run(ctx, sources...)
	if sum != nil && len(sum.Pairs) > 0 {
		if werr := writeOutputs(c, sum); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	printSummary(c.App.Writer, sum, c.String("state"))
	return nil
}

func writeOutputs(c *cli.Context, sum *pipeline.Summary) error {
	train, eval := export.Split(sum.Pairs, c.Float64("ratio"), c.Int64("seed"))
	if err := export.WriteJSON(c.String("out"), c.String("prefix"), train, eval); err != nil {
		return err
	}
	if path := c.String("jsonl"); path != "" {
		if err := export.WriteJSONL(path, sum.Pairs); err != nil {
			return err
		}
	}
	trainPath, evalPath := export.Paths(c.String("out"), c.String("prefix"))
	slog.Info("datasets written", "train", trainPath, "train_pairs", len(train), "eval", evalPath, "eval_pairs", len(eval))
	return nil
}

func printSummary(w io.Writer, sum *pipeline.Summary, statePath string) {
	fmt.Fprintf(w, "\n=== Reconstruction Summary ===\n")
	fmt.Fprintf(w, "Run: %s (%s)\n", sum.RunID, sum.Mode)
	fmt.Fprintf(w, "Sources processed: %d\n", len(sum.Sources))
	fmt.Fprintf(w, "Tickets: %d (skipped %d)\n", sum.Tickets, sum.Skipped)
	fmt.Fprintf(w, "Discarded: %d\n", sum.TotalDiscarded())
	for reason, n := range sum.DiscardCounts() {
		fmt.Fprintf(w, "  %s: %d\n", reason, n)
	}
	fmt.Fprintf(w, "Pairs: %d\n", sum.PairCount)
	fmt.Fprintf(w, "Errors: %d\n", len(sum.Errors))
	if sum.DryRun {
		fmt.Fprintf(w, "Mode: DRY RUN (no DB writes)\n")
	}
	if statePath != "" {
		fmt.Fprintf(w, "State file: %s\n", statePath)
	}
}

// reconstructCmd creates the reconstruct command.
func reconstructCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "reconstruct",
		Usage:     "Reconstruct tickets from a JSON file (or stdin) and print the results",
		ArgsUsage: "[file|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "history", Usage: "Input mode: history|bulk"},
			&cli.BoolFlag{Name: "pairs", Usage: "Print only the pairs, one JSON object per line"},
		},
		Action: func(c *cli.Context) error {
			mode, err := parseMode(c.String("mode"))
			if err != nil {
				return err
			}

			var data []byte
			if path := c.Args().First(); path != "" && path != "-" {
				data, err = os.ReadFile(path)
			} else {
				data, err = io.ReadAll(c.App.Reader)
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			tickets, err := pipeline.ParseTickets(data)
			if err != nil {
				return err
			}

			engine := reconstruct.New(engineOptions(cfg, mode))
			enc := json.NewEncoder(c.App.Writer)
			for _, t := range tickets {
				res := engine.Reconstruct(t)
				if !c.Bool("pairs") {
					if err := enc.Encode(res); err != nil {
						return err
					}
					continue
				}
				for _, p := range res.Pairs {
					if err := enc.Encode(p); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the NATS request subscriber",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: cfg.Port, Usage: "HTTP port"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "history", Usage: "Input mode: history|bulk"},
			&cli.BoolFlag{Name: "no-nats", Usage: "Serve HTTP only"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			mode, err := parseMode(c.String("mode"))
			if err != nil {
				return err
			}
			engine := reconstruct.New(engineOptions(cfg, mode))

			var runs api.RunLister
			if cfg.DatabaseURL != "" {
				db, err := store.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect database: %w", err)
				}
				defer db.Close()
				slog.Info("database connected")
				runs = db
			}

			var pub pipeline.Publisher
			var hc *hermes.Client
			if !c.Bool("no-nats") {
				hc, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
				if err != nil {
					return err
				}
				defer hc.Close()
				slog.Info("NATS connected", "url", cfg.NatsURL)
				pub = hc
			}

			svc := pipeline.NewService(engine, pub, slog.Default())
			if hc != nil {
				if err := hc.Subscribe(hermes.SubjectReconstructRequested, "ticketpairs", svc.HandleRequest); err != nil {
					return err
				}
			}

			srv := api.NewServer(c.Int("port"), cfg.APIToken, svc, runs, slog.Default())
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			slog.Info("ticketpairs ready", "port", c.Int("port"), "mode", mode.String())

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown", "error", err)
			}
			slog.Info("ticketpairs stopped")
			return nil
		},
	}
}

// migrateCmd creates the migrate command.
func migrateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the run and pair tables",
		Action: func(c *cli.Context) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := store.New(c.Context, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "migrated")
			return nil
		},
	}
}

func parseMode(s string) (reconstruct.Mode, error) {
	switch s {
	case "history", "":
		return reconstruct.ModeHistory, nil
	case "bulk":
		return reconstruct.ModeBulk, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want history or bulk)", s)
}

func engineOptions(cfg *config.Config, mode reconstruct.Mode) reconstruct.Options {
	return reconstruct.Options{
		Mode:       mode,
		Queues:     cfg.Queues,
		MergeTurns: cfg.MergeTurns,
		Actors:     speaker.Actors{System: cfg.SystemActor, Bot: cfg.BotActor},
	}
}
