// Shared test server setup, which simplifies all API and job tests.

package testutil

import (
	"testing"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/api"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/config"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/core"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/downloader/providers/mocktube"
	"github.com/RobertvdLeeuw/spotdl-lean/internal/orchestrator"
)

// TestConfig returns a configuration that downloads into a temporary
// directory with the mock provider.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Port: 0}
	cfg.Database.Path = ":memory:"
	cfg.Log.Level = "info"
	cfg.Spotify.MaxRetries = 1
	cfg.Downloader = config.DefaultDownloader()
	cfg.Downloader.Threads = 2
	cfg.Downloader.Output = t.TempDir()
	cfg.Downloader.AudioProvider = "mocktube"
	return cfg
}

// SetupTestApp builds a core.App backed by an in-memory database, the
// static resolver and a registered mocktube provider configured with opts.
func SetupTestApp(t *testing.T, opts ...mocktube.Option) *core.App {
	t.Helper()
	return SetupTestAppWithConfig(t, TestConfig(t), opts...)
}

// SetupTestAppWithConfig is SetupTestApp with a caller-supplied config.
func SetupTestAppWithConfig(t *testing.T, cfg *config.Config, opts ...mocktube.Option) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	provider := mocktube.New(opts...)
	providers.Register(provider)
	t.Cleanup(func() {
		providers.UnregisterAll()
	})

	app, err := core.Assemble(cfg, db, orchestrator.Options{
		Resolver:  StaticResolver{},
		Converter: provider,
	}, "test")
	if err != nil {
		t.Fatalf("Failed to assemble test app: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T, opts ...mocktube.Option) (*api.Server, *core.App) {
	t.Helper()
	app := SetupTestApp(t, opts...)
	return api.NewServer(app), app
}
