package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/framing"
	"github.com/mildmongrel/thicket/internal/simserver"
)

type Config struct {
	Addr        string `envconfig:"ADDR" required:"true" default:"0.0.0.0:53333"`
	Compression string `envconfig:"COMPRESSION" default:"auto"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// embedded so its keys share the THICKET_SIMSERVER_ prefix
	simserver.Config
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("THICKET_SIMSERVER", config); err != nil {
		return nil, err
	}

	mode, err := framing.ParseCompressionMode(config.Compression)
	if err != nil {
		return nil, err
	}
	config.Config.Compression = mode

	return config, nil
}

func configureLogger(level string) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Level = log.ParseLevel(level)
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger(config.LogLevel)

	simServer, err := simserver.NewSimServer("tcp", config.Addr, config.Config, logger)
	if err != nil {
		return fmt.Errorf("could not construct sim server: %w", err)
	}
	logger.Info().Msgf("started sim server on %s", simServer.Addr())

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	var simServerRunErr error
	go func() {
		defer wg.Done()
		simServerRunErr = simServer.Run(ctx)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-signalChan
	logger.Info().Msgf("received %+v signal", sig)

	cancel()
	wg.Wait()
	if simServerRunErr != nil {
		return fmt.Errorf("sim server run failed: %w", simServerRunErr)
	}

	stats := simServer.Stats()
	logger.Info().
		Int64("logins", stats.Logins).
		Int64("rooms", stats.RoomsCreated).
		Int64("drafts", stats.DraftsCompleted).
		Int64("picks", stats.Picks).
		Msg("stopped")

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "simserver: %v\n", err)
		os.Exit(42)
	}
}
