package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"awakenfetch/internal/controller"
)

var (
	ErrNilEngine   = errors.New("engine is required")
	ErrNilRegistry = errors.New("registry is required")
	ErrNilLogger   = errors.New("logger is required")
)

type Handler struct {
	engine   *gin.Engine
	registry controller.Registry
	logger   *slog.Logger
	limiter  *RateLimiter
}

type Option func(*Handler)

func WithEngine(engine *gin.Engine) Option {
	return func(h *Handler) {
		h.engine = engine
	}
}

func WithRegistry(r controller.Registry) Option {
	return func(h *Handler) {
		h.registry = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithRateLimiter(rl *RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = rl
	}
}

func (h *Handler) IsValid() error {
	switch {
	case h.engine == nil:
		return ErrNilEngine
	case h.registry == nil:
		return ErrNilRegistry
	case h.logger == nil:
		return ErrNilLogger
	default:
		return nil
	}
}

func New(opts ...Option) (*Handler, error) {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.IsValid(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) Setup() error {
	ctrl, err := controller.New(
		controller.WithRegistry(h.registry),
		controller.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}

	api := h.engine.Group("/api")
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}

	api.GET("/chains", ctrl.ListChains)

	proxy := api.Group("/proxy")
	proxy.GET("/:chain", ctrl.ProxyTransactions)
	proxy.GET("/:chain/stream", ctrl.StreamTransactions)
	proxy.GET("/:chain/export", ctrl.ExportTransactions)

	return nil
}
