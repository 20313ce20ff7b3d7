package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/config"
	"github.com/marmos91/ftpbridge/pkg/server"
)

const usage = `ftpbridge - FTP/FTPS gateway to a remote filesystem

Usage:
  ftpbridge init [--force] [--config PATH]   Write a sample configuration file
  ftpbridge start [--config PATH]            Start the FTP and FTPS listeners

The configuration defaults to $XDG_CONFIG_HOME/ftpbridge/config.yaml.
Any value can be overridden with FTPBRIDGE_<SECTION>_<KEY> variables.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "start":
		runStart(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	configPath := fs.String("config", "", "Destination path (default: standard location)")
	_ = fs.Parse(args)

	var (
		path string
		err  error
	)
	if *configPath != "" {
		path, err = config.InitConfigAt(*configPath, *force)
	} else {
		path, err = config.InitConfig(*force)
	}
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Set remote.uri and remote.superuser, then run: ftpbridge start")
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file (default: standard location)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logger.Sync()

	fmt.Println("ftpbridge - FTP gateway to a remote filesystem")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := cfg.Process()

	// Metrics come first so the remote client is created instrumented.
	metricsResult, err := config.InitializeMetrics(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize metrics: %v", err)
	}
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	client, err := config.CreateRemoteClient(ctx, &cfg.Remote)
	if err != nil {
		logger.Fatal("Failed to create remote client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Error closing remote client: %v", err)
		}
	}()
	logger.Info("Remote store: %s (superuser=%s)", proc.RemoteURI, proc.Superuser)

	if cfg.Remote.HealthCheck {
		if err := config.HealthCheck(ctx, client); err != nil {
			logger.Fatal("%v", err)
		}
		logger.Info("Remote store health check passed")
	}

	store, err := config.CreateUserStore(&cfg.Users, proc)
	if err != nil {
		logger.Fatal("Failed to load users: %v", err)
	}
	if cfg.Users.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Credential file watcher stopped: %v", err)
			}
		}()
	}

	view := config.CreateView(client, &cfg.Policy)

	adapters, err := config.CreateAdapters(cfg, view, store, metricsResult.FTPMetrics)
	if err != nil {
		logger.Fatal("Failed to create adapters: %v", err)
	}

	srv := server.New(server.Config{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         metricsResult.Server,
	})
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			logger.Fatal("Failed to add %s adapter: %v", a.Protocol(), err)
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
