package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hushlabs/speakd/internal/bus"
	"github.com/hushlabs/speakd/internal/cache"
	"github.com/hushlabs/speakd/internal/config"
	"github.com/hushlabs/speakd/internal/gateway"
	"github.com/hushlabs/speakd/internal/journal"
	"github.com/hushlabs/speakd/internal/natsserver"
	"github.com/hushlabs/speakd/internal/synth"
	"github.com/hushlabs/speakd/internal/transcribe"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	ready      atomic.Bool
	wg         sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := newTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	store, err := cache.New(r.cfg.Cache.Directory, r.cfg.Cache.PublicPrefix)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}

	j, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			busCfg.Servers = []string{fmt.Sprintf("nats://localhost:%d", busCfg.Port)}
		}
		busClient, err = bus.Connect(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
	}

	synthesizer := r.buildSynthesizer()
	recognizer := r.buildRecognizer()

	gw, err := gateway.New(r.cfg, store, synthesizer, recognizer, j, busClient, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("/metrics", tel.handler)
	gw.Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("speech_mode", r.cfg.Speech.Mode),
		slog.String("cache_dir", r.cfg.Cache.Directory))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if err := tel.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	return nil
}

func (r *Runtime) buildSynthesizer() synth.Synthesizer {
	if r.cfg.Speech.Mode == "mock" {
		return synth.NewMockSynth()
	}
	return synth.NewDeepgramSynth(
		r.cfg.Speech.Endpoint,
		r.cfg.Speech.APIKey,
		time.Duration(r.cfg.Speech.TimeoutMS)*time.Millisecond)
}

func (r *Runtime) buildRecognizer() transcribe.Recognizer {
	if !r.cfg.Transcribe.Enabled {
		return nil
	}
	if r.cfg.Transcribe.Mode == "mock" {
		return transcribe.NewMockRecognizer()
	}
	return transcribe.NewGeminiRecognizer(
		r.cfg.Transcribe.Endpoint,
		r.cfg.Transcribe.APIKey,
		r.cfg.Transcribe.Model,
		time.Duration(r.cfg.Transcribe.TimeoutMS)*time.Millisecond)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
