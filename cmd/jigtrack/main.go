package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/jigtrack/internal/activity"
	"github.com/matthewbaird/jigtrack/internal/config"
	"github.com/matthewbaird/jigtrack/internal/ddl"
	"github.com/matthewbaird/jigtrack/internal/event"
	"github.com/matthewbaird/jigtrack/internal/eventbus"
	"github.com/matthewbaird/jigtrack/internal/handler"
	"github.com/matthewbaird/jigtrack/internal/jig"
	"github.com/matthewbaird/jigtrack/internal/logger"
	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/server"
	"github.com/matthewbaird/jigtrack/internal/settings"
	"github.com/matthewbaird/jigtrack/internal/store"
	"github.com/matthewbaird/jigtrack/internal/table"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.General.LogLevel,
		Format: cfg.General.LogFormat,
		Dir:    cfg.General.LogDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("jigtrack stopped", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return store.Open(ctx, path)
}

func run(ctx context.Context, cfg config.AppConfig, log *zap.Logger) error {
	jigDB, err := openDB(ctx, cfg.Storage.JigDB)
	if err != nil {
		return err
	}
	defer jigDB.Close()
	enumDB, err := openDB(ctx, cfg.Storage.EnumDB)
	if err != nil {
		return err
	}
	defer enumDB.Close()

	static, err := schema.Jig()
	if err != nil {
		return err
	}
	enums := store.NewEnumStore(enumDB, schema.DefaultDomains, log)
	sch, err := schema.Resolve(ctx, static, enums, enums)
	if err != nil {
		if errors.Is(err, schema.ErrConfiguration) {
			log.Error("enumerated domains unavailable", zap.String("op", "resolve_schema"), zap.Error(err))
		}
		return err
	}

	outcome, err := ddl.CreateTable(ctx, jigDB, sch, cfg.Storage.JigTable, false)
	if err != nil {
		return err
	}
	log.Info("jig table ready", zap.String("table", cfg.Storage.JigTable), zap.Stringer("outcome", outcome))
	rows, err := store.NewTable(jigDB, cfg.Storage.JigTable, sch, log)
	if err != nil {
		return err
	}

	acts, err := activity.NewSQLiteStore(ctx, jigDB, log)
	if err != nil {
		return err
	}
	live := handler.NewLive(log)
	bus := eventbus.New(log)
	bus.Subscribe("log", eventbus.NewLogConsumer(log))
	bus.Subscribe("live", live)
	rec := event.NewActivityRecorder(acts)
	rec.SetPublisher(bus)

	st, err := settings.Load(cfg.Settings.Path, log)
	if err != nil {
		return err
	}
	view := table.New(rows, sch)
	if err := view.Refresh(ctx); err != nil {
		return err
	}

	app, err := handler.New(handler.Config{
		Schema:   sch,
		Rows:     rows,
		View:     view,
		Jigs:     jig.NewService(rows, rec, log),
		Domains:  jig.NewDomains(enums, sch.DomainNames(), schema.DefaultDomains, rec, log),
		Settings: st,
		Activity: acts,
		Recorder: rec,
		Live:     live,
		Creds:    jig.Credentials{User: cfg.Auth.AdminUser, Password: cfg.Auth.AdminPassword},
		Log:      log,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx, server.Config{Addr: cfg.HTTP.ListenAddr, Handler: app.Routes(), Log: log})
}
