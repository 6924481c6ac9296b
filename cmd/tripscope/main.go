package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/tripscope/pkg/config"
	"github.com/umputun/tripscope/pkg/generator"
	"github.com/umputun/tripscope/pkg/recommender"
	"github.com/umputun/tripscope/pkg/repository"
	"github.com/umputun/tripscope/pkg/semantic"
	"github.com/umputun/tripscope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] can't load config %s: %v", opts.Config, err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.Embeddings.APIKey, cfg.Generator.APIKey)

	log.Printf("[INFO] starting tripscope version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires the collaborators and starts the HTTP server
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close database: %v", closeErr)
		}
	}()

	provider, err := makeSemanticProvider(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("init semantic provider: %w", err)
	}

	gen := generator.New(cfg.Generator)
	engine := recommender.NewEngine(repos.Catalog, repos.User, repos.Interaction, provider)

	store := &storeAdapter{
		UserRepository:        repos.User,
		CatalogRepository:     repos.Catalog,
		InteractionRepository: repos.Interaction,
	}

	srv := server.New(cfg, store, engine, gen, revision, debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// storeAdapter joins the per-entity repositories into the single persistence
// surface the server expects
type storeAdapter struct {
	*repository.UserRepository
	*repository.CatalogRepository
	*repository.InteractionRepository
}

// makeSemanticProvider picks the semantic backend: disabled, remote
// embeddings API or the local in-memory text index
func makeSemanticProvider(cfg config.EmbeddingsConfig) (recommender.SemanticProvider, error) {
	switch {
	case cfg.Disabled:
		log.Print("[INFO] semantic similarity disabled")
		return semantic.Noop{}, nil
	case cfg.APIKey != "":
		log.Printf("[INFO] using embeddings provider, model %s", cfg.Model)
		return semantic.NewEmbeddings(cfg), nil
	default:
		log.Print("[INFO] using local text index for semantic similarity")
		return semantic.NewTextIndex()
	}
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = append(logOpts, lgr.Debug)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	secrets := make([]string, 0, len(secs))
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
