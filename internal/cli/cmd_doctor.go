package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	debugpkg "github.com/amanthanvi/registry/internal/debug"
	"github.com/spf13/cobra"
)

func newDoctorCommand(deps commandDeps) *cobra.Command {
	var bundlePath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, data directory and registry database",
		Example: "  registry doctor\n" +
			"  registry doctor --bundle ./registry-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("doctor does not accept positional arguments")
			}

			bundle := runDoctorChecks(cmd.Context(), deps)
			if strings.TrimSpace(bundlePath) != "" {
				if err := debugpkg.WriteBundle(bundlePath, bundle); err != nil {
					return mapCommandError(err)
				}
			}

			if deps.globals.JSON {
				payload := map[string]any{"checks": bundle.Checks}
				if bundlePath != "" {
					payload["bundle"] = bundlePath
				}
				if err := printJSON(deps.out, payload); err != nil {
					return mapCommandError(err)
				}
			} else if !deps.globals.Quiet {
				for _, check := range bundle.Checks {
					if _, err := fmt.Fprintf(deps.out, "%s: %s (%s)\n", check.Name, boolToState(check.OK, "ok", "fail"), check.Message); err != nil {
						return mapCommandError(err)
					}
				}
				if bundlePath != "" {
					if _, err := fmt.Fprintf(deps.out, "debug bundle written: %s\n", bundlePath); err != nil {
						return mapCommandError(err)
					}
				}
			}

			if !bundle.Healthy() {
				return asExitError(ExitCodeGeneric, fmt.Errorf("doctor: one or more checks failed"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Also write a sanitized JSON diagnostic bundle")
	return cmd
}

func runDoctorChecks(ctx context.Context, deps commandDeps) debugpkg.Bundle {
	if ctx == nil {
		ctx = context.Background()
	}
	bundle := debugpkg.NewBundle()
	bundle.Version = map[string]any{
		"version":    deps.build.Version,
		"commit":     deps.build.Commit,
		"build_time": deps.build.BuildTime,
	}

	cfg, report, err := loadConfigFn(loadOptions(deps.globals))
	if err != nil {
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "config", OK: false, Message: err.Error()})
		return bundle
	}
	configMessage := "defaults (no file at " + report.ConfigPath + ")"
	if report.ConfigFileLoaded {
		configMessage = report.ConfigPath
	}
	bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "config", OK: true, Message: configMessage})
	if !report.ConfigFileLoaded {
		bundle.Notes = append(bundle.Notes, "no config file at "+report.ConfigPath+"; built-in defaults in use")
	}
	if report.EnvFile != "" {
		bundle.Notes = append(bundle.Notes, fmt.Sprintf("env file %s supplied %d keys", report.EnvFile, len(report.EnvFileKeys)))
	}
	bundle.Config = map[string]any{
		"config_path":     report.ConfigPath,
		"config_loaded":   report.ConfigFileLoaded,
		"env_file":        report.EnvFile,
		"env_file_keys":   report.EnvFileKeys,
		"data_dir":        cfg.Storage.DataDir,
		"log_level":       cfg.Logging.Level,
		"log_file":        cfg.Logging.File,
		"log_max_size_mb": cfg.Logging.MaxSizeMB,
		"log_max_files":   cfg.Logging.MaxFiles,
	}

	store, err := openStoreFn(cfg.Storage.DataDir)
	if err != nil {
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "store", OK: false, Message: app.Flatten(err)})
		return bundle
	}
	defer store.Close()
	bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "store", OK: true, Message: store.Path()})

	storeInfo := map[string]any{"path": store.Path()}
	bundle.Store = storeInfo

	var journalMode string
	if err := store.DB().GetContext(ctx, &journalMode, `PRAGMA journal_mode`); err != nil {
		bundle.Notes = append(bundle.Notes, "journal mode unknown: "+err.Error())
	} else {
		storeInfo["journal_mode"] = journalMode
		if !strings.EqualFold(journalMode, "wal") {
			bundle.Notes = append(bundle.Notes, "journal_mode is "+journalMode+", expected wal")
		}
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "schema", OK: false, Message: err.Error()})
	} else {
		storeInfo["schema_version"] = version
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "schema", OK: true, Message: fmt.Sprintf("version %d", version)})
	}

	count, err := app.NewMemberService(store.Members, nil).Count(ctx)
	if err != nil {
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "members", OK: false, Message: err.Error()})
	} else {
		storeInfo["member_count"] = count
		bundle.Checks = append(bundle.Checks, debugpkg.Check{Name: "members", OK: true, Message: fmt.Sprintf("%d stored", count)})
	}
	return bundle
}
