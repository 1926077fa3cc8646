package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"lecture-me/client/internal/backend"
	"lecture-me/client/internal/config"
	"lecture-me/client/internal/service"
)

// App is the wired client core: a backend client and the session driving it.
type App struct {
	Config  *config.Config
	Client  *backend.Client
	Session *service.Session
}

// Load reads the configuration, installs the logger and wires the app.
func Load() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return nil, err
	}

	setupLogger(cfg.LogLevel)

	logConfigSource(cfg)

	return New(cfg)
}

// New wires an App from cfg using the default logger.
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid BACKEND_URL %q", cfg.BackendURL)
	}

	logger := slog.Default()
	opts := []backend.Option{backend.WithLogger(logger)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, backend.WithTimeout(cfg.RequestTimeout))
	}
	if cfg.AuthToken != "" {
		opts = append(opts, backend.WithToken(cfg.AuthToken))
	}
	client := backend.NewClient(cfg.BackendURL, opts...)

	replyOpts := service.ReplyOptionsFromConfig(cfg)
	replyOpts.Logger = logger
	session := service.NewSession(client, replyOpts)

	slog.Info("Client core ready", "backend_url", cfg.BackendURL, "persist_reply", cfg.PersistReply)
	return &App{Config: cfg, Client: client, Session: session}, nil
}

// Close stops the session's background work.
func (a *App) Close() {
	a.Session.Close()
}

func logConfigSource(cfg *config.Config) {
	if file := cfg.Source(); file != "" {
		slog.Info("Successfully loaded configuration from file.", "file", file)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
