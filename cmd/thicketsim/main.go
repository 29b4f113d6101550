package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/orchestrator"
	"github.com/mildmongrel/thicket/internal/report"
	"github.com/mildmongrel/thicket/internal/results"
	"github.com/mildmongrel/thicket/internal/session"
	"github.com/mildmongrel/thicket/internal/status"
	"github.com/mildmongrel/thicket/internal/telemetry"
)

type Config struct {
	Addr       string        `envconfig:"ADDR" required:"true" default:"127.0.0.1:53333"`
	Count      int           `envconfig:"COUNT" default:"1"`
	NamePrefix string        `envconfig:"NAME_PREFIX" default:"sim_"`
	StaggerMax time.Duration `envconfig:"STAGGER_MAX" default:"1s"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`

	Session session.Config `envconfig:"SESSION"`

	// empty disables the feature
	ResultsDB  string `envconfig:"RESULTS_DB"`
	MQTTBroker string `envconfig:"MQTT_BROKER"`
	MQTTTopic  string `envconfig:"MQTT_TOPIC" default:"thicket/sim"`
	StatusAddr string `envconfig:"STATUS_ADDR"`
}

func loadConfig(args []string) (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("THICKET_SIM", config); err != nil {
		return nil, err
	}

	// the session count may also be given as the only argument
	if len(args) > 0 {
		count, err := strconv.Atoi(args[0])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid session count %q", args[0])
		}
		config.Count = count
	}

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
	config, err := loadConfig(os.Args[1:])
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger(config.LogLevel)

	host := telemetry.ReadHostInfo()
	logger.Info().
		Str("host", host.Hostname).
		Str("platform", host.Platform).
		Str("cpu", host.CPUModel).
		Int("cores", host.CPUCores).
		Uint64("memory_mib", host.MemoryMiB).
		Msg("host")

	var orchOpts []orchestrator.Option

	if config.MQTTBroker != "" {
		client := telemetry.NewMQTTClient(config.MQTTBroker, "thicketsim-"+host.Hostname, logger)
		publisher := telemetry.NewPublisher(client, config.MQTTTopic, host, logger)
		if err := publisher.Connect(); err != nil {
			return err
		}
		defer publisher.Close()

		orchOpts = append(orchOpts, orchestrator.WithObserver(publisher))
	}

	var (
		recorder *results.Recorder
		runID    int64
	)
	if config.ResultsDB != "" {
		recorder, err = results.Open(config.ResultsDB, logger)
		if err != nil {
			return err
		}
		defer recorder.Close()

		runID, err = recorder.StartRun(context.Background(), config.Addr, config.Count, time.Now())
		if err != nil {
			return err
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		Network:    "tcp",
		Address:    config.Addr,
		Count:      config.Count,
		NamePrefix: config.NamePrefix,
		StaggerMax: config.StaggerMax,
		Session:    config.Session,
	}, logger, orchOpts...)

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.StatusAddr != "" {
		statusServer := status.NewServer(orch, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.Run(ctx, config.StatusAddr); err != nil {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signalChan)

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %+v signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := orch.Run(ctx); err != nil {
		logger.Warn().Err(err).Msg("some sessions ended with errors")
	}

	snaps := orch.Snapshots()
	report.Render(os.Stdout, snaps)

	if recorder != nil {
		if err := recorder.RecordSessions(context.Background(), runID, snaps); err != nil {
			logger.Error().Err(err).Msg("could not record results")
		}
	}

	cancel()
	wg.Wait()

	if failed := report.Summarize(snaps).Failed; failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, len(snaps))
	}
	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "thicketsim: %v\n", err)
		os.Exit(42)
	}
}
