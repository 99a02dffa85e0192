// Package main contains the entrypoint of eventstore-tail, a command that
// follows an Event Stream of the configured Event Store and logs every Event.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"github.com/get-eventually/go-eventstore"
	"github.com/get-eventually/go-eventstore/config"
	"github.com/get-eventually/go-eventstore/correlation"
	"github.com/get-eventually/go-eventstore/event"
	"github.com/get-eventually/go-eventstore/logger"
	"github.com/get-eventually/go-eventstore/logger/zaplogger"
	"github.com/get-eventually/go-eventstore/opentelemetry"
	"github.com/get-eventually/go-eventstore/subscription"
	"github.com/get-eventually/go-eventstore/version"
)

// Starting points of the tailed Subscription.
const (
	fromBeginning = "beginning"
	fromLatest    = "latest"
)

type params struct {
	Config        string
	AggregateType string `split_words:"true"`
	Stream        string
	Subscription  string
	From          string `default:"beginning"`
	Poll          bool
}

func parseParams() (*params, error) {
	var p params

	if err := envconfig.Process("TAIL", &p); err != nil {
		return nil, fmt.Errorf("params: failed to parse from env, %v", err)
	}

	if p.AggregateType != "" && p.Stream != "" {
		return nil, fmt.Errorf("params: aggregate type and stream are mutually exclusive, %w",
			eventstore.ErrInvalidArgument)
	}

	if p.From != fromBeginning && p.From != fromLatest {
		return nil, fmt.Errorf("params: unsupported starting point %q, %w", p.From, eventstore.ErrInvalidArgument)
	}

	return &p, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}

	return config.Load(path)
}

// streamID resolves the tailed Event Stream, empty for all streams.
func streamID(p *params, cfg *config.Config) (string, error) {
	if p.AggregateType == "" {
		return p.Stream, nil
	}

	router, err := cfg.Router()
	if err != nil {
		return "", err
	}

	return router.Resolve(p.AggregateType)
}

func printer(log logger.Logger) event.Processor {
	return correlation.Processor{Processor: event.ProcessorFunc(func(ctx context.Context, evt event.Persisted) error {
		correlationID, _ := correlation.CorrelationID(ctx)

		logger.Info(log, "event received",
			logger.With("streamId", evt.StreamID),
			logger.With("eventNumber", evt.EventNumber),
			logger.With("commitPosition", evt.CommitPosition),
			logger.With("type", evt.Message.Name()),
			logger.With("metadata", evt.Metadata),
			logger.With("correlationId", correlationID),
			logger.With("payload", evt.Message),
		)

		return nil
	})}
}

func subscriber(p *params, b *backend, log logger.Logger) (subscription.Subscriber, error) {
	var sub subscription.Subscriber = b.subscriber

	if p.Poll {
		store, err := opentelemetry.NewInstrumentedEventStore(b.store)
		if err != nil {
			return nil, err
		}

		sub = &subscription.Polling{Reader: store, Logger: log}
	}

	instrumented, err := opentelemetry.NewInstrumentedSubscriber(sub)
	if err != nil {
		return nil, err
	}

	sub = instrumented

	// A named subscription resumes from its checkpoint: the tail is only
	// its starting point the first time it runs, see start.
	if p.From == fromLatest && p.Subscription == "" {
		sub = subscription.Volatile{Subscriber: sub, Positions: b.positions}
	}

	if p.Subscription != "" {
		sub = &subscription.CatchUp{
			Name:         p.Subscription,
			Subscriber:   sub,
			Checkpointer: b.checkpointer,
			Logger:       log,
		}
	}

	return sub, nil
}

// start returns the position requested for the tailed Subscription.
func start(ctx context.Context, p *params, b *backend, streamID string) (version.Position, error) {
	if p.From != fromLatest || p.Subscription == "" {
		return version.FromBeginning, nil
	}

	position, err := b.positions.LatestPosition(ctx, streamID)
	if err != nil {
		return version.Position{}, fmt.Errorf("eventstore-tail.start: failed to get latest position, %w", err)
	}

	return position, nil
}

func run() error {
	p, err := parseParams()
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to parse params, %w", err)
	}

	cfg, err := loadConfig(p.Config)
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to load config, %w", err)
	}

	log, zl, err := zaplogger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to initialize logger, %w", err)
	}

	//nolint:errcheck // No need for this error to come up if it happens.
	defer zl.Sync()

	id, err := streamID(p, cfg)
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to resolve stream, %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg.EventStore, log)
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to open backend, %w", err)
	}

	defer b.close()

	s, err := subscriber(p, b, log)
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to build subscriber, %w", err)
	}

	from, err := start(ctx, p, b, id)
	if err != nil {
		return err
	}

	sub, err := s.Subscribe(ctx, id, from, printer(log))
	if err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to subscribe, %w", err)
	}

	logger.Info(log, "tailing event store",
		logger.With("backend", cfg.EventStore.Backend),
		logger.With("streamId", id),
		logger.With("from", p.From),
	)

	select {
	case <-ctx.Done():
		logger.Info(log, "shutting down")
	case <-sub.Done():
	}

	if err := sub.Close(); err != nil {
		return fmt.Errorf("eventstore-tail.main: failed to close subscription, %w", err)
	}

	<-sub.Done()

	if err := sub.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("eventstore-tail.main: subscription failed, %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
