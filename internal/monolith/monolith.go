// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"basisarb/internal/config"
	"basisarb/internal/di"
	"basisarb/internal/logger"
	"basisarb/internal/notify"
	"basisarb/internal/supervisor"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Supervisor() *supervisor.Supervisor
	Notifier() *notify.Notifier
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config     *config.Config
	logger     logger.LoggerInterface
	supervisor *supervisor.Supervisor
	notifier   *notify.Notifier
	container  di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface, sup *supervisor.Supervisor, notifier *notify.Notifier) (*app, error) {
	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("supervisor", sup)
	container.Register("notifier", notifier)

	return &app{
		config:     cfg,
		logger:     log,
		supervisor: sup,
		notifier:   notifier,
		container:  container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Supervisor() *supervisor.Supervisor {
	return a.supervisor
}

func (a *app) Notifier() *notify.Notifier {
	return a.notifier
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close cancels every supervised task.
func (a *app) Close(ctx context.Context) error {
	a.supervisor.CancelAll(ctx, "")
	return nil
}
