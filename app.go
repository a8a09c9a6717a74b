package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"album-publisher/auth"
	"album-publisher/config"
	"album-publisher/logging"
	"album-publisher/notify"
	"album-publisher/publish"
	"album-publisher/schedule"
	"album-publisher/tracking"
	"album-publisher/types"
	"album-publisher/upload"
)

// app carries the loaded configuration and builds components on demand
type app struct {
	cfg     *config.Config
	secrets *config.Secrets
	log     *logrus.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	secrets, err := config.LoadSecrets(envFiles...)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, secrets: secrets, log: logging.New(cfg.Log)}, nil
}

func (a *app) loadSchedule() (*schedule.Table, error) {
	return schedule.Load(a.cfg.Paths.Schedule)
}

// store opens the configured tracking store; the returned func releases it
func (a *app) store(ctx context.Context) (tracking.Store, func(), error) {
	if a.cfg.Tracking.Driver == "postgres" {
		pg, err := tracking.OpenPostgres(ctx, a.secrets.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	}
	return tracking.NewJSONStore(a.cfg.Paths.Tracking), func() {}, nil
}

// reconciled loads the schedule with flags derived from the tracking store
func (a *app) reconciled(ctx context.Context) (*schedule.Table, error) {
	table, err := a.loadSchedule()
	if err != nil {
		return nil, err
	}
	store, closeStore, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracking: %w", err)
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	table.Reconcile(state, loc)
	return table, nil
}

func (a *app) authManager() (*auth.Manager, error) {
	return auth.NewManager(auth.Options{
		ClientID:     a.secrets.YouTubeClientID,
		ClientSecret: a.secrets.YouTubeClientSecret,
		RedirectURI:  a.secrets.YouTubeRedirectURI,
		RefreshToken: a.secrets.YouTubeRefreshToken,
		TokenPath:    a.cfg.Paths.TokenFile,
		Logger:       a.log,
	})
}

func (a *app) uploader(ctx context.Context) (*upload.Uploader, error) {
	mgr, err := a.authManager()
	if err != nil {
		return nil, err
	}
	client, err := mgr.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("youtube auth: %w", err)
	}
	return upload.New(ctx, a.cfg, client, a.log)
}

func (a *app) notifier() notify.Notifier {
	return notify.New(a.cfg.Notify, a.secrets, a.log)
}

// coordinator wires the publish coordinator; the returned func releases the store
func (a *app) coordinator(ctx context.Context) (*publish.Coordinator, func(), error) {
	table, err := a.loadSchedule()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := a.store(ctx)
	if err != nil {
		return nil, nil, err
	}
	up, err := a.uploader(ctx)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	c, err := publish.New(a.cfg, publish.Deps{
		Schedule:   table,
		Store:      store,
		Publishers: up.Publishers(),
		Notifier:   a.notifier(),
		Out:        os.Stdout,
		Logger:     a.log,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return c, closeStore, nil
}

// saveRunState records the last run next to the reports
func (a *app) saveRunState(run *types.RunState) {
	if run == nil {
		return
	}
	path := filepath.Join(a.cfg.Paths.Reports, "last-run.json")
	if err := publish.WriteReport(path, run); err != nil {
		a.log.WithError(err).Warn("Could not save run state")
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
