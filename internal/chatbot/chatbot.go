package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"RagChat/internal/archive"
	"RagChat/internal/backend"
	"RagChat/internal/cache"
	"RagChat/internal/config"
	"RagChat/internal/database"
	"RagChat/internal/documents"
	"RagChat/internal/prompts"
	"RagChat/internal/retrieval"
	"RagChat/internal/session"
	"RagChat/internal/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ModelPreferenceKey stores the last model the user picked.
const ModelPreferenceKey = "initialLocalLM"

// ApologyText replaces the answer when the model stream fails.
const ApologyText = "Sorry, something went wrong while generating a response. Please try again."

var (
	ErrTurnInProgress      = errors.New("a response is still being generated")
	ErrNoModel             = errors.New("no model selected")
	ErrEmptyPrompt         = errors.New("prompt is empty")
	ErrUnknownModel        = errors.New("model is not available")
	ErrNothingToRegenerate = errors.New("no human message to regenerate from")
)

// Observer is told about transcript changes while a turn runs.
type Observer interface {
	// MessagesChanged receives the full transcript after every change.
	MessagesChanged(messages []session.Message)
	// Refresh is called on the first streamed chunk, every 8th chunk after
	// it and once when the stream ends.
	Refresh()
}

// Retriever finds context for a query.
type Retriever interface {
	Search(ctx context.Context, query string, scope []string) ([]retrieval.Result, error)
}

// Preferences stores small user settings.
type Preferences interface {
	Preference(key string) (string, bool, error)
	SetPreference(key, value string) error
}

// Deps are the collaborators of a ChatBot. Model, Retriever, Archive,
// Catalog, Cache and Preferences may be shared between sessions; Session
// and Documents belong to one.
type Deps struct {
	Model       backend.Client
	Retriever   Retriever
	Archive     archive.Archive
	Catalog     *prompts.Catalog
	Cache       cache.Cache
	Preferences Preferences

	Session   *session.Session
	Documents *documents.Selection

	// PreferredModel is tried before the stored preference.
	PreferredModel string
	// FallbackModel names titles when no model is active.
	FallbackModel string

	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// ChatBot runs chat turns for one session
type ChatBot struct {
	model     backend.Client
	retriever Retriever
	archive   archive.Archive
	catalog   *prompts.Catalog
	cache     cache.Cache
	prefs     Preferences
	session   *session.Session
	documents *documents.Selection

	preferredModel string
	fallbackModel  string

	logger *slog.Logger
	tracer trace.Tracer
	turns  metric.Int64Counter
	chunks metric.Int64Counter

	mu          sync.Mutex
	busy        bool
	activeModel string
	models      []backend.Model
	observer    Observer
}

// New creates a ChatBot from its collaborators.
func New(deps Deps) *ChatBot {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil || deps.Meter == nil {
		deps.Tracer, deps.Meter = telemetry.Noop()
	}
	if deps.Session == nil {
		deps.Session = session.New()
	}
	if deps.Documents == nil {
		deps.Documents = documents.NewSelection()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(0)
	}
	if deps.Catalog == nil {
		// a memory repository never fails to load
		deps.Catalog, _ = prompts.NewCatalog(prompts.NewMemoryRepository(), deps.Logger)
	}

	cb := &ChatBot{
		model:          deps.Model,
		retriever:      deps.Retriever,
		archive:        deps.Archive,
		catalog:        deps.Catalog,
		cache:          deps.Cache,
		prefs:          deps.Preferences,
		session:        deps.Session,
		documents:      deps.Documents,
		preferredModel: deps.PreferredModel,
		fallbackModel:  deps.FallbackModel,
		activeModel:    deps.PreferredModel,
		logger:         deps.Logger.With("session_id", deps.Session.ID),
		tracer:         deps.Tracer,
	}

	var err error
	cb.turns, err = deps.Meter.Int64Counter("chat.turns",
		metric.WithDescription("Completed chat turns by outcome"))
	if err != nil {
		cb.logger.Warn("failed to create counter", "name", "chat.turns", "error", err)
	}
	cb.chunks, err = deps.Meter.Int64Counter("chat.stream.chunks",
		metric.WithDescription("Streamed model chunks"))
	if err != nil {
		cb.logger.Warn("failed to create counter", "name", "chat.stream.chunks", "error", err)
	}
	return cb
}

// Wire builds the shared collaborators described by cfg. The returned func
// releases them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (Deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Error("failed to close resource", "error", err)
			}
		}
	}

	model, err := backend.New(cfg.ModelBackend, cfg.ModelBaseURL, nil)
	if err != nil {
		return Deps{}, nil, err
	}

	store, err := database.Open(cfg.CatalogDBPath)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers = append(closers, store.Close)

	catalog, err := prompts.NewCatalog(prompts.NewStoreRepository(store), logger)
	if err != nil {
		cleanup()
		return Deps{}, nil, err
	}

	arch, closeArchive, err := archive.Open(cfg, logger)
	if err != nil {
		cleanup()
		return Deps{}, nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	closers = append(closers, closeArchive)

	retriever := retrieval.NewClient(retrieval.Config{
		BaseURL:            cfg.VectorSearchBaseURL,
		ScopedPath:         cfg.ScopedSearchPath,
		RouterPath:         cfg.RouterSearchPath,
		RouterDocumentGUID: cfg.RouterDocumentGUID,
	}, logger, retrieval.WithTelemetry(tracer, meter))

	titleCache := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.TitleCacheTTL)*time.Second, logger)
	if closer, ok := titleCache.(interface{ Close() error }); ok {
		closers = append(closers, closer.Close)
	}

	return Deps{
		Model:          model,
		Retriever:      retriever,
		Archive:        arch,
		Catalog:        catalog,
		Cache:          titleCache,
		Preferences:    store,
		PreferredModel: cfg.Model,
		FallbackModel:  cfg.FallbackModel,
		Logger:         logger,
		Tracer:         tracer,
		Meter:          meter,
	}, cleanup, nil
}

// SetObserver installs the transcript observer, replacing any previous one.
func (cb *ChatBot) SetObserver(o Observer) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.observer = o
}

// Session returns the conversation the bot is working on.
func (cb *ChatBot) Session() *session.Session { return cb.session }

// Documents returns the session's document selection.
func (cb *ChatBot) Documents() *documents.Selection { return cb.documents }

// Catalog returns the system-instruction catalog.
func (cb *ChatBot) Catalog() *prompts.Catalog { return cb.catalog }

// Busy reports whether a turn is in flight.
func (cb *ChatBot) Busy() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.busy
}

// begin marks a turn as started, failing if one is already running.
func (cb *ChatBot) begin() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.busy {
		return ErrTurnInProgress
	}
	cb.busy = true
	return nil
}

func (cb *ChatBot) end() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.busy = false
}

func (cb *ChatBot) notifyMessages(messages []session.Message) {
	cb.mu.Lock()
	o := cb.observer
	cb.mu.Unlock()
	if o != nil {
		o.MessagesChanged(messages)
	}
}

func (cb *ChatBot) notifyRefresh() {
	cb.mu.Lock()
	o := cb.observer
	cb.mu.Unlock()
	if o != nil {
		o.Refresh()
	}
}
