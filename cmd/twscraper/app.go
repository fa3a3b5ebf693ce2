package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/derwolz/TwitterScraper/pkg/auth"
	"github.com/derwolz/TwitterScraper/pkg/config"
	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/socialapi"
	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

// app holds what most commands share: configuration, logger and database
type app struct {
	cfg   *config.Config
	store *store.Store
	log   logger.Logger

	closeOnce sync.Once
}

// openApps are closed by fail, which exits before deferred closes run
var (
	openAppsMu sync.Mutex
	openApps   []*app
)

// osExit is replaced in tests
var osExit = os.Exit

// globalFlags collects the persistent flags that were set
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dbPath != "" {
		flags["db"] = dbPath
	}
	return flags
}

// loadConfig loads configuration from all sources and initializes logging
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and opens the database
func newApp(flags map[string]interface{}) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return openApp(cfg)
}

func openApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.Database.Path,
		store.WithBusyTimeout(cfg.Database.BusyTimeout),
		store.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	log := logger.GetLogger()
	log.WithField("path", cfg.Database.Path).Debug("database opened")
	a := &app{cfg: cfg, store: st, log: log}
	openAppsMu.Lock()
	openApps = append(openApps, a)
	openAppsMu.Unlock()
	return a, nil
}

// quietLogs keeps only errors on the console so log lines do not tear the
// progress panel. A configured log file or debug level is left alone.
func (a *app) quietLogs() {
	if a.cfg.Logging.File != "" || a.cfg.Logging.Level == "debug" {
		return
	}
	l, err := logger.New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		return
	}
	logger.SetLogger(l)
	a.log = l
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close database")
		}
	})

	openAppsMu.Lock()
	defer openAppsMu.Unlock()
	for i, open := range openApps {
		if open == a {
			openApps = append(openApps[:i], openApps[i+1:]...)
			break
		}
	}
}

// closeAll closes every app that is still open
func closeAll() {
	openAppsMu.Lock()
	apps := append([]*app(nil), openApps...)
	openAppsMu.Unlock()

	for _, a := range apps {
		a.close()
	}
}

// defaultCredential is the part of auth.Manager used to fill in a missing key
type defaultCredential interface {
	RetrieveDefault() (*auth.Credential, error)
}

// resolveAPIKey fills the API key, and the base URL when unset, from the
// saved default credential, then checks the API settings
func resolveAPIKey(cfg *config.Config, creds defaultCredential) error {
	if cfg.API.APIKey == "" && creds != nil {
		cred, err := creds.RetrieveDefault()
		switch {
		case err == nil:
			cfg.API.APIKey = cred.APIKey
			if cfg.API.BaseURL == "" {
				cfg.API.BaseURL = cred.BaseURL
			}
		case !errors.Is(err, auth.ErrCredentialsNotFound):
			return fmt.Errorf("failed to read saved credential: %w", err)
		}
	}
	return cfg.ValidateAPI()
}

// newClient builds the API client, reading the saved credential if needed
func (a *app) newClient() (*socialapi.Client, error) {
	var creds defaultCredential
	if a.cfg.API.APIKey == "" {
		if m, err := auth.NewManager(); err == nil {
			creds = m
		} else {
			a.log.WithError(err).Warn("credential manager unavailable")
		}
	}
	if err := resolveAPIKey(a.cfg, creds); err != nil {
		return nil, err
	}
	return socialapi.NewClient(socialapi.OptionsFromConfig(a.cfg), a.log), nil
}

// fail prints an error and exits
func fail(msg string, err error) {
	if err != nil {
		ui.PrintError(msg, strings.ReplaceAll(err.Error(), "\n", "; "))
	} else {
		ui.PrintError(msg)
	}
	closeAll()
	osExit(1)
}
