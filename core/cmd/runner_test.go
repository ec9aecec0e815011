package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/tunebot/core/config"
	coretelegram "github.com/m3rciful/tunebot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{}

func (app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TUNEBOT_TEST_CONFIG", "/from/env.yaml")
	assert.Equal(t, "/flag.yaml", ResolveConfigPath(Options{ConfigPath: "/flag.yaml", ConfigEnvVar: "TUNEBOT_TEST_CONFIG"}))
	assert.Equal(t, "/from/env.yaml", ResolveConfigPath(Options{ConfigEnvVar: "TUNEBOT_TEST_CONFIG"}))
	assert.Equal(t, "default.yaml", ResolveConfigPath(Options{ConfigEnvVar: "TUNEBOT_TEST_UNSET", DefaultConfigPath: "default.yaml"}))
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUNEBOT_TEST_DOTENV=yes\n"), 0o600))
	t.Setenv("TUNEBOT_TEST_DOTENV", "")
	os.Unsetenv("TUNEBOT_TEST_DOTENV")

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "yes", os.Getenv("TUNEBOT_TEST_DOTENV"))
}

func TestRunWiresHooks(t *testing.T) {
	var started, stopped bool
	err := Run(Options{
		ConfigPath:     "config.yaml",
		LoadConfig:     func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil },
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return app{}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			started = opts.OnStart(ctx, coretelegram.Runtime{}) == nil
			stopped = opts.OnStop(ctx, coretelegram.Runtime{}) == nil
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestRunRequiresLoaders(t *testing.T) {
	assert.Error(t, Run(Options{}))
	boom := errors.New("boom")
	err := Run(Options{
		ConfigPath: "x",
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, boom },
		Bootstrap:  func(context.Context, ConfigCarrier) (TelegramApp, error) { return app{}, nil },
	})
	assert.ErrorIs(t, err, boom)
}
