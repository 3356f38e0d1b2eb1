package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pjtunstall/by-a-thread/internal/app"
	"github.com/pjtunstall/by-a-thread/internal/config"
	"github.com/pjtunstall/by-a-thread/internal/observability"
	"github.com/pjtunstall/by-a-thread/internal/telemetry"
	"github.com/pjtunstall/by-a-thread/logging"
	loggingsinks "github.com/pjtunstall/by-a-thread/logging/sinks"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdLogger := log.Default()
	telemetryLogger := telemetry.WrapLogger(stdLogger)

	logCfg := logging.DefaultConfig()
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	router, err := logging.NewRouter(logging.ClockFunc(time.Now), logCfg, sinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("close logging router: %v", cerr)
		}
	}()

	configPath := os.Getenv("CONFIG_PATH")
	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}

	var obsCfg observability.Config
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			obsCfg.EnablePprofTrace = value
		} else {
			telemetryLogger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}

	cfg := app.Config{
		Logger:        telemetryLogger,
		Publisher:     router,
		Server:        serverCfg,
		Connectable:   os.Getenv("CONNECTABLE"),
		Observability: obsCfg,
	}

	srv, err := app.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("construct server: %w", err)
	}

	stdLogger.Printf("passcode: %s", srv.Passcode())

	return srv.Run(ctx)
}
