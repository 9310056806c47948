package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hushlabs/speakd/internal/bus"
	"github.com/hushlabs/speakd/internal/cache"
	"github.com/hushlabs/speakd/internal/config"
	"github.com/hushlabs/speakd/internal/journal"
	"github.com/hushlabs/speakd/internal/protocol"
	"github.com/hushlabs/speakd/internal/synth"
	"github.com/hushlabs/speakd/internal/transcribe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const maxTranscribeUpload = 32 << 20 // 32 MiB

// SpeakRequest is the POST /tts payload.
type SpeakRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// SpeakResponse carries the artifact link and whether it came from cache.
type SpeakResponse struct {
	Link   string `json:"link"`
	Cached bool   `json:"cached"`
}

// TranscribeResponse is the POST /transcribe payload.
type TranscribeResponse struct {
	Transcription string  `json:"transcription"`
	TimeTaken     float64 `json:"time_taken"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Gateway owns the public HTTP surface: synthesis with a content-addressed
// cache, artifact serving, transcription, and the request journal.
type Gateway struct {
	cfg        config.Config
	store      *cache.Store
	synth      synth.Synthesizer
	recognizer transcribe.Recognizer
	journal    *journal.Store
	bus        *bus.Client
	logger     *slog.Logger

	tracer        trace.Tracer
	requests      metric.Int64Counter
	synthDuration metric.Float64Histogram
}

func New(cfg config.Config, store *cache.Store, s synth.Synthesizer, rec transcribe.Recognizer, j *journal.Store, b *bus.Client, log *slog.Logger) (*Gateway, error) {
	meter := otel.Meter("github.com/hushlabs/speakd/gateway")
	requests, err := meter.Int64Counter("speakd.tts.requests",
		metric.WithDescription("TTS requests by outcome"))
	if err != nil {
		return nil, err
	}
	synthDuration, err := meter.Float64Histogram("speakd.synthesis.duration",
		metric.WithDescription("Provider synthesis latency"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:           cfg,
		store:         store,
		synth:         s,
		recognizer:    rec,
		journal:       j,
		bus:           b,
		logger:        log.With(slog.String("component", "gateway")),
		tracer:        otel.Tracer("github.com/hushlabs/speakd/gateway"),
		requests:      requests,
		synthDuration: synthDuration,
	}, nil
}

// Register mounts the gateway routes on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/tts", g.handleTTS)
	mux.HandleFunc("/requests", g.handleRequests)
	if g.recognizer != nil {
		mux.HandleFunc("/transcribe", g.handleTranscribe)
	}
	prefix := strings.TrimSuffix(g.cfg.Cache.PublicPrefix, "/")
	mux.Handle(prefix+"/", g.artifactHandler(prefix))
}

// artifactHandler serves stored artifacts by exact name. Bare-directory,
// nested, and non-artifact paths are rejected so the cache directory is
// never browsable.
func (g *Gateway) artifactHandler(prefix string) http.Handler {
	files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(g.store.Dir())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix+"/")
		if name == "" || strings.Contains(name, "/") || !strings.HasSuffix(name, cache.Extension) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (g *Gateway) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	model := req.Model
	if model == "" {
		model = g.cfg.Speech.DefaultModel
	}

	ctx, span := g.tracer.Start(r.Context(), "tts.request",
		trace.WithAttributes(attribute.String("tts.model", model)))
	defer span.End()

	started := time.Now()
	digest := cache.Key(req.Text, model)

	_, hit, err := g.store.Lookup(digest)
	if err != nil {
		g.logger.Error("cache lookup failed", slog.String("digest", digest), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cache lookup failed")
		g.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return
	}

	if hit {
		g.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
		g.finish(ctx, digest, model, req.Text, true, 0, started)
		writeJSON(w, http.StatusOK, SpeakResponse{Link: g.store.Link(digest), Cached: true})
		return
	}

	synthStart := time.Now()
	audio, err := g.synth.Synthesize(ctx, synth.Request{Text: req.Text, Model: model})
	g.synthDuration.Record(ctx, time.Since(synthStart).Seconds(),
		metric.WithAttributes(attribute.String("tts.model", model)))
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("synthesis failed", slog.String("model", model), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "synthesis failed: "+err.Error())
		g.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "provider_error")))
		return
	}

	if err := g.store.Write(digest, audio); err != nil {
		span.RecordError(err)
		g.logger.Error("artifact write failed", slog.String("digest", digest), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store audio")
		g.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "store_error")))
		return
	}

	g.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "miss")))
	g.finish(ctx, digest, model, req.Text, false, len(audio), started)
	writeJSON(w, http.StatusOK, SpeakResponse{Link: g.store.Link(digest), Cached: false})
}

// finish records the journal entry and bus event for a successful request.
func (g *Gateway) finish(ctx context.Context, digest, model, text string, cached bool, bytes int, started time.Time) {
	latency := time.Since(started).Milliseconds()
	if g.journal != nil {
		err := g.journal.Append(ctx, journal.Entry{
			Digest:    digest,
			Model:     model,
			TextChars: len(text),
			Cached:    cached,
			Bytes:     bytes,
			LatencyMS: latency,
		})
		if err != nil {
			g.logger.Warn("journal append failed", slog.String("error", err.Error()))
		}
	}
	g.bus.PublishSynthesis(protocol.SynthesisEvent{
		Digest:    digest,
		Model:     model,
		Link:      g.store.Link(digest),
		Cached:    cached,
		Bytes:     bytes,
		LatencyMS: latency,
		Timestamp: time.Now().UTC(),
	})
}

func (g *Gateway) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxTranscribeUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/mpeg":
	default:
		writeError(w, http.StatusBadRequest, "only .wav and .mp3 files are supported")
		return
	}

	audio, err := io.ReadAll(io.LimitReader(file, maxTranscribeUpload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	ctx, span := g.tracer.Start(r.Context(), "transcribe.request",
		trace.WithAttributes(attribute.String("audio.mime_type", mimeType)))
	defer span.End()

	started := time.Now()
	text, err := g.recognizer.Transcribe(ctx, audio, mimeType)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("transcription failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "transcription failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TranscribeResponse{
		Transcription: text,
		TimeTaken:     time.Since(started).Seconds(),
	})
}

func (g *Gateway) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	entries, err := g.journal.ListRecent(r.Context(), limit)
	if err != nil {
		g.logger.Error("journal list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string][]journal.Entry{"requests": entries})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
