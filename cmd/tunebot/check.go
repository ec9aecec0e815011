package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/tunebot/core/cmd"
	coreconfig "github.com/m3rciful/tunebot/core/config"
	coredatabase "github.com/m3rciful/tunebot/core/database"
	"github.com/m3rciful/tunebot/core/media"
)

type checkResult struct {
	name string
	err  error
	info string
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate config, downloads directory, yt-dlp and the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := corecmd.LoadEnvFiles(".env"); err != nil {
				return err
			}
			path := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        *configPath,
				DefaultConfigPath: defaultConfigPath,
			})
			results := runChecks(cmd.Context(), path)
			failed := 0
			for _, r := range results {
				mark := "ok  "
				line := r.info
				if r.err != nil {
					mark = "FAIL"
					line = r.err.Error()
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-10s %s\n", mark, r.name, line)
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, path string) []checkResult {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return []checkResult{{name: "config", err: err}}
	}
	out := []checkResult{{
		name: "config",
		info: fmt.Sprintf("%s, mode=%s, quota=%d/h, groups=%t", path, cfg.Telegram.RunMode,
			cfg.Session.MaxRequestsPerUser, cfg.Access.GroupMode),
	}}

	out = append(out, checkResult{name: "downloads", info: cfg.Downloads.Dir, err: checkWritableDir(cfg.Downloads.Dir)})

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	version, err := media.Version(vctx)
	out = append(out, checkResult{name: "yt-dlp", info: version, err: err})

	if cfg.Database.Enabled {
		dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := coredatabase.Connect(dctx, cfg.Database)
		if err == nil {
			_ = db.Close()
		}
		out = append(out, checkResult{name: "database", info: cfg.Database.Host + "/" + cfg.Database.Name, err: err})
	}
	return out
}

// checkWritableDir creates dir when missing and proves a file can be written.
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
