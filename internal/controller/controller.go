package controller

import (
	"log/slog"

	"github.com/pkg/errors"

	"awakenfetch/pkg/types/chains"
)

var ErrInvalidControllerConfig = errors.New("invalid controller config")

// Registry resolves chain ids to adapters.
type Registry interface {
	Get(chainID string) (chains.Adapter, bool)
	ChainIDs() []string
}

type Controller struct {
	registry Registry
	logger   *slog.Logger
}

type Option func(*Controller)

func WithRegistry(r Registry) Option {
	return func(c *Controller) {
		c.registry = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func (c *Controller) IsValid() error {
	switch {
	case c.registry == nil:
		return errors.Wrap(ErrInvalidControllerConfig, "registry cannot be nil")
	case c.logger == nil:
		return errors.Wrap(ErrInvalidControllerConfig, "logger cannot be nil")
	default:
		return nil
	}
}

func New(opts ...Option) (*Controller, error) {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	return c, nil
}
