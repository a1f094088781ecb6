package resource

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/telemetry"
)

// HooksBuilder constructs the hooks of one specialization for cfg.
type HooksBuilder func(cfg *Config) Hooks

// Factory selects a specialization by Config.Kind. Kinds without a
// registered builder get BaseHooks.
type Factory struct {
	validator *validation.Validator
	logger    zerolog.Logger
	metrics   *telemetry.Metrics

	mu       sync.Mutex
	builders map[Kind]HooksBuilder
	handlers map[*Config]*Handler
}

func NewFactory(logger zerolog.Logger, metrics *telemetry.Metrics) *Factory {
	return &Factory{
		validator: validation.NewValidator(),
		logger:    telemetry.Component(logger, "resource"),
		metrics:   metrics,
		builders:  make(map[Kind]HooksBuilder),
		handlers:  make(map[*Config]*Handler),
	}
}

// Register binds kind to a specialization, replacing any previous binding.
func (f *Factory) Register(kind Kind, build HooksBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = build
	for cfg := range f.handlers {
		if cfg.Kind == kind {
			delete(f.handlers, cfg)
		}
	}
}

// Handler returns the handler for cfg, building it on first use.
func (f *Factory) Handler(cfg *Config) *Handler {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.handlers[cfg]; ok {
		return h
	}

	build, ok := f.builders[cfg.Kind]
	if !ok {
		build = NewBaseHooks
	}
	h := &Handler{
		cfg:       cfg,
		hooks:     build(cfg),
		validator: f.validator,
		logger:    f.logger.With().Str("kind", cfg.Kind.String()).Logger(),
		metrics:   f.metrics,
	}
	f.handlers[cfg] = h
	return h
}
