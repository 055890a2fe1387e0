package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds what every tpctl command needs: the logger and an
// authenticated API client.
type Application struct {
	logger *slog.Logger
	client *tpsdk.Client
}

// New validates cfg, sets up logging to logOut and builds the API client.
// Building the client performs the first token exchange.
func New(ctx context.Context, cfg Config, logOut io.Writer, opts ...tpsdk.Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		logger: slogx.New(slogx.Config{
			Service: "tpctl",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  logOut,
		}),
	}

	base := []tpsdk.Option{
		tpsdk.WithBaseURL(cfg.BaseURL),
		tpsdk.WithTokenURL(cfg.TokenURL),
		tpsdk.WithTimeout(cfg.Timeout),
		tpsdk.WithRateLimit(cfg.RateLimit),
		tpsdk.WithLogger(app.logger),
		tpsdk.WithUserAgent("tpctl/" + BuildVersion),
	}

	client, err := tpsdk.NewClient(ctx, cfg.ClientID, cfg.ClientSecret, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	app.client = client

	app.logger.Debug("client ready", "base_url", client.BaseURL())
	return app, nil
}

// Client returns the API client.
func (app *Application) Client() *tpsdk.Client {
	return app.client
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}
