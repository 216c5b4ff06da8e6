package main

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/opcost/internal/activity"
	"github.com/matthewbaird/opcost/internal/database"
	"github.com/matthewbaird/opcost/internal/event"
	"github.com/matthewbaird/opcost/internal/eventbus"
	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/observability/metrics"
	"github.com/matthewbaird/opcost/internal/source"
	"github.com/matthewbaird/opcost/internal/statement"
	"github.com/matthewbaird/opcost/internal/store"
)

// app is the wired service over the configured database.
type app struct {
	drv    *entsql.Driver
	source *source.SQLStore
	svc    *statement.Service
	bus    *eventbus.Bus
	log    zerolog.Logger
}

// openApp opens and migrates the database and wires the statement service.
// The event bus is started on ctx.
func openApp(ctx context.Context) (*app, error) {
	log := logger.WithComponent("app")

	drv, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}

	bus := eventbus.New(256, logger.GetLogger())
	bus.Subscribe("log", eventbus.NewLogConsumer(logger.WithComponent("events")))
	bus.Start(ctx)

	acts := activity.NewSQLStore(drv)
	recorder := event.NewActivityRecorder(acts)
	recorder.SetPublisher(bus)

	src := source.NewSQLStore(drv)
	svc := statement.NewService(statement.Deps{
		Source:   src,
		Store:    store.NewSQLStore(drv),
		Recorder: recorder,
		Activity: acts,
		Metrics:  metrics.Default(),
		Log:      logger.GetLogger(),
	}, statement.Options{
		Tolerance:   cfg.Tolerance(),
		Currency:    cfg.Currency,
		MaxParallel: cfg.MaxParallel,
	})
	log.Debug().Msg("application wired")
	return &app{drv: drv, source: src, svc: svc, bus: bus, log: log}, nil
}

// Close drains the event bus and closes the database.
func (a *app) Close() {
	a.bus.Stop()
	if err := a.drv.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}
