package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/tunebot/core/bootstrap"
	corecmd "github.com/m3rciful/tunebot/core/cmd"
	coreconfig "github.com/m3rciful/tunebot/core/config"
	coretelegram "github.com/m3rciful/tunebot/core/telegram"
	"github.com/m3rciful/tunebot/internal/bot"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        *configPath,
				DefaultConfigPath: defaultConfigPath,
				EnvFiles:          []string{".env"},
				LoadConfig:        loadConfig,
				Bootstrap:         bootstrapApp,
			})
		},
	}
}

func loadConfig(path string) (corecmd.ConfigCarrier, error) {
	return coreconfig.Load(path)
}

// app closes the journal database once the bot stopped.
type app struct {
	*bot.App
	infra *bootstrap.Result
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	opts, err := a.App.TelegramRunOptions()
	if err != nil {
		return opts, err
	}
	stop := opts.OnStop
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		var err error
		if stop != nil {
			err = stop(ctx, rt)
		}
		if cerr := a.infra.Close(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}
	return opts, nil
}

func bootstrapApp(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	b, err := bot.New(cfg, bot.Deps{DB: infra.DB})
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("bot: %w", err)
	}
	return app{App: b, infra: infra}, nil
}
