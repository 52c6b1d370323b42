// Agentwire Exchange Daemon
//
// Runs one side of the envelope exchange as a long-lived process. The same
// binary serves both roles; -role picks whether it receives as the server
// or the agent.
//
// Usage:
//
//	go run ./cmd/agentwired -role agent                  # Agent against local Redis
//	go run ./cmd/agentwired -role server -env prod.env   # Server with env file config
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/deaddrop-research/agentwire/config"
	"github.com/deaddrop-research/agentwire/correlation"
	"github.com/deaddrop-research/agentwire/dispatch"
	"github.com/deaddrop-research/agentwire/envelope"
	"github.com/deaddrop-research/agentwire/observability"
	"github.com/deaddrop-research/agentwire/store"
	"github.com/deaddrop-research/agentwire/transport"
)

// stdLogger implements dispatch.Logger using standard library log.
type stdLogger struct{}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	log.Printf("[DEBUG] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, keysAndValues)
}

func main() {
	role := flag.String("role", "agent", "exchange role: server or agent")
	envFile := flag.String("env", "", "optional KEY=VALUE config file")
	otlpEndpoint := flag.String("otlp", "", "optional OTLP collector endpoint for tracing")
	flag.Parse()

	logger := &stdLogger{}

	as := envelope.Origin(*role)
	if !as.Valid() {
		log.Fatalf("Invalid role %q: must be server or agent", *role)
	}

	cfg := config.DefaultConfig()
	if *envFile != "" {
		loaded, err := config.FromEnvFile(*envFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	config.SetConfig(cfg)

	if err := cfg.CreateDirs(); err != nil {
		log.Fatalf("Failed to create drop directories: %v", err)
	}

	logger.Info("agentwired_starting", "role", string(as), "broker", cfg.BrokerURL)

	if *otlpEndpoint != "" {
		shutdown, err := observability.InitTracer("agentwired-"+string(as), *otlpEndpoint)
		if err != nil {
			logger.Warn("tracing_init_failed", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn("tracing_shutdown_failed", "error", err)
				}
			}()
		}
	}

	client, err := transport.NewRedisClient(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("Failed to connect broker: %v", err)
	}
	defer client.Close()

	tr := transport.NewRedisTransport(client, cfg.QueuePrefix)
	st := store.NewRedisStore(client)

	tracker := correlation.NewTrackerWithSeenTTL(
		cfg.RequestTimeoutDuration(),
		cfg.IdempotencyTTLDuration(),
	)
	dispatcher := dispatch.NewDispatcher(envelope.NewCodec(nil), tracker, logger)
	dispatcher.AddMiddleware(dispatch.NewLoggingMiddleware(logger))
	dispatcher.AddMiddleware(dispatch.NewCircuitBreakerMiddleware(5, cfg.RequestTimeoutDuration(), logger))

	// Requests land here; responses resolve inside the dispatcher. The
	// handler archives the envelope and acknowledges with its own id.
	err = dispatcher.RegisterHandler(envelope.MessageTypeCommandRequest,
		func(ctx context.Context, env *envelope.Envelope) error {
			if err := st.Put(ctx, env); err != nil {
				return err
			}
			resp := envelope.NewResponse(env, as, []byte(env.ID))
			return dispatcher.Send(ctx, tr, resp)
		})
	if err != nil {
		log.Fatalf("Failed to register handler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic beat surfaces the pending-request depth while the receive
	// loop does the actual work.
	beat := dispatch.NewScheduler(cfg.PollIntervalDuration(), func(ctx context.Context) error {
		logger.Debug("exchange_beat", "pending", tracker.PendingCount())
		return nil
	}, logger)
	go func() { _ = beat.Run(ctx) }()

	go func() {
		if err := dispatcher.Run(ctx, tr, as); err != nil {
			logger.Error("dispatcher_exited", "error", err)
		}
	}()

	logger.Info("agentwired_ready", "role", string(as))
	fmt.Printf("\nAgentwire exchange running as %s\n", as)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	cancel()
	tracker.Clear()
	logger.Info("agentwired_stopped")
}
