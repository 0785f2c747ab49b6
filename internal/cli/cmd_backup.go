package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/spf13/cobra"
)

func newBackupCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup and restore the registry database",
	}
	cmd.AddCommand(newBackupCreateCommand(deps), newBackupRestoreCommand(deps))
	return cmd
}

func newBackupCreateCommand(deps commandDeps) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Write a checksummed tar.gz snapshot of registry.db",
		Example: "  registry backup create --output ./registry-2026-10-18.tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup create does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("backup create requires --output")
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				configPath := ""
				if s.report.ConfigFileLoaded {
					configPath = s.report.ConfigPath
				}
				manifest, err := app.NewBackupService(s.store).Create(ctx, app.BackupCreateRequest{
					OutputPath: outputPath,
					ConfigPath: configPath,
				})
				if err != nil {
					return err
				}
				s.logger.Info("backup created", "output", outputPath, "member_count", manifest.MemberCount)
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"output": outputPath, "manifest": manifest})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "backup written: %s (%d members)\n", outputPath, manifest.MemberCount)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Backup archive path")
	return cmd
}

func newBackupRestoreCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath   string
		overwrite  bool
		withConfig bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace registry.db in the data directory with a backup",
		Example: "  registry backup restore --from ./registry.tar.gz\n" +
			"  registry backup restore --from ./registry.tar.gz --overwrite --with-config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup restore does not accept positional arguments")
			}
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("backup restore requires --from")
			}

			cfg, report, err := loadConfigFn(loadOptions(deps.globals))
			if err != nil {
				return mapCommandError(fmt.Errorf("load config: %w", err))
			}
			logger, closer, err := newInvocationLogger(cfg, deps, cmd.CommandPath())
			if err != nil {
				return mapCommandError(err)
			}
			defer closer.Close()

			req := app.BackupRestoreRequest{
				InputPath: fromPath,
				TargetDir: cfg.Storage.DataDir,
				Overwrite: overwrite,
			}
			if withConfig {
				req.ConfigPath = report.ConfigPath
			}
			manifest, err := app.RestoreBackup(cmd.Context(), req)
			if err != nil {
				logger.Warn("backup restore failed", "input", fromPath, "error", err)
				return mapCommandError(err)
			}

			// Opening runs migrations, so an older backup is brought up to date now.
			store, err := openStoreFn(cfg.Storage.DataDir)
			if err != nil {
				return mapCommandError(fmt.Errorf("open restored registry: %w", err))
			}
			if err := store.Close(); err != nil {
				return mapCommandError(err)
			}
			logger.Info("backup restored", "input", fromPath, "member_count", manifest.MemberCount)

			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, map[string]any{"restored": cfg.Storage.DataDir, "manifest": manifest}))
			}
			if deps.globals.Quiet {
				return nil
			}
			_, err = fmt.Fprintf(deps.out, "backup restored into %s (%d members)\n", cfg.Storage.DataDir, manifest.MemberCount)
			return mapCommandError(err)
		},
	}
	cmd.Flags().StringVar(&fromPath, "from", "", "Backup archive path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing registry.db")
	cmd.Flags().BoolVar(&withConfig, "with-config", false, "Also restore config.toml when the backup has one")
	return cmd
}
