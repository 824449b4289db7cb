package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/lussekatt/internal/app"
	"github.com/shrimpsizemoose/lussekatt/internal/dispatch"
	"github.com/shrimpsizemoose/lussekatt/internal/fetcher"
	"github.com/shrimpsizemoose/lussekatt/internal/github"
	"github.com/shrimpsizemoose/lussekatt/internal/lockfile"
	"github.com/shrimpsizemoose/lussekatt/internal/notify"
)

func main() {
	var (
		configPath string
		cloneMode  bool
	)
	flag.StringVar(&configPath, "config", "config.toml", "path to config file")
	flag.BoolVar(&cloneMode, "clone", false, "run a single fetch attempt: COURSE ASSIGNMENT UID")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := app.NewService(configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start gitbot: %v", err)
	}
	defer service.Close()

	if err := service.Store.ApplyMigrations(service.Config.Database.MigrationsDir); err != nil {
		logger.Error.Fatalf("Failed to apply migrations: %v", err)
	}

	if cloneMode {
		os.Exit(runClone(ctx, service, flag.Args()))
	}
	os.Exit(runDispatch(ctx, service, configPath))
}

// runClone is the single-attempt mode the dispatcher spawns as a subprocess.
// Operators use it directly for manual retries.
func runClone(ctx context.Context, service *app.Service, args []string) int {
	if len(args) != 3 {
		logger.Error.Printf("--clone needs exactly 3 arguments: COURSE ASSIGNMENT UID")
		return -1
	}
	courseID, assignmentID, uid := args[0], args[1], args[2]

	worker := newWorker(service)
	outcome, err := worker.Run(ctx, courseID, assignmentID, uid)
	if err != nil {
		logger.Error.Printf("(%s, %s, %s) %v", courseID, assignmentID, uid, err)
	} else {
		logger.Info.Printf("(%s, %s, %s) fetch attempt finished: %s", courseID, assignmentID, uid, outcome)
	}
	return outcome.ExitCode()
}

func runDispatch(ctx context.Context, service *app.Service, configPath string) int {
	executable, err := os.Executable()
	if err != nil {
		logger.Error.Printf("Failed to resolve own executable: %v", err)
		return -1
	}

	dispatcher := dispatch.New(
		service.Store,
		dispatch.NewSubprocessRunner(executable, configPath),
		service.Config.Fetch.Lockfile,
	)

	summary, err := dispatcher.Run(ctx)
	if errors.Is(err, lockfile.ErrAlreadyRunning) {
		logger.Info.Printf("Execution cancelled: %v", err)
		return 1
	}
	if err != nil {
		logger.Error.Printf("Dispatch run failed: %v", err)
		return -1
	}

	if err := pushMetrics(service.Config); err != nil {
		logger.Error.Printf("Failed to push metrics: %v", err)
	}

	fmt.Println(summary)
	return 0
}

func newWorker(service *app.Service) *fetcher.Worker {
	var githubOpts []github.Option
	if service.Config.Github.APIBaseURL != "" {
		githubOpts = append(githubOpts, github.WithAPIBaseURL(service.Config.Github.APIBaseURL))
	}
	if service.Config.Github.CloneHost != "" {
		githubOpts = append(githubOpts, github.WithCloneHost(service.Config.Github.CloneHost))
	}

	return fetcher.New(
		service.Store,
		notify.New(service.Store),
		service.Tokens,
		service.Config.Fetch.SubmissionsDir,
		fetcher.WithCloner(fetcher.GitCloner{Binary: service.Config.Fetch.GitBinary}),
		fetcher.WithDateFormat(service.Config.Fetch.DateFormat),
		fetcher.WithGithubOptions(githubOpts...),
	)
}
