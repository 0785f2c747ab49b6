package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/spf13/cobra"
)

// maxImportFileSize caps JSON bundles read by import.
const maxImportFileSize = 256 << 20

func newExportCommand(deps commandDeps) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every member as a versioned JSON bundle",
		Example: "  registry export --output ./members.json\n" +
			"  registry export > members.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("export does not accept positional arguments")
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				payload, err := app.NewTransferService(s.members).ExportJSON(ctx)
				if err != nil {
					return err
				}
				if strings.TrimSpace(outputPath) == "" || outputPath == "-" {
					_, err := fmt.Fprintln(deps.out, string(payload))
					return err
				}
				if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
					return fmt.Errorf("export: create output directory: %w", err)
				}
				if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
					return fmt.Errorf("export: write output: %w", err)
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"output": outputPath})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "export written: %s\n", outputPath)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output path (default stdout)")
	return cmd
}

func newImportCommand(deps commandDeps) *cobra.Command {
	var (
		fromPath   string
		onConflict string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import members from a JSON bundle produced by export",
		Example: "  registry import --from ./members.json\n" +
			"  registry import --from ./members.json --on-conflict overwrite",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("import does not accept positional arguments")
			}
			if strings.TrimSpace(fromPath) == "" {
				return usageErrorf("import requires --from")
			}
			mode := app.ConflictMode(strings.ToLower(strings.TrimSpace(onConflict)))
			if mode != app.ConflictModeSkip && mode != app.ConflictModeOverwrite {
				return usageErrorf("--on-conflict must be skip or overwrite, got %q", onConflict)
			}

			payload, err := readImportPayload(cmd.InOrStdin(), fromPath)
			if err != nil {
				return mapCommandError(err)
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath(), func(ctx context.Context, s *session) error {
				result, err := app.NewTransferService(s.members).ImportJSON(ctx, payload, mode)
				s.logger.Info("import finished", "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, result)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "members created=%d updated=%d skipped=%d\n", result.Created, result.Updated, result.Skipped)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&fromPath, "from", "", "Input path, or - for stdin")
	cmd.Flags().StringVar(&onConflict, "on-conflict", string(app.ConflictModeSkip), "What to do with an existing CNIC number: skip or overwrite")
	return cmd
}

func readImportPayload(stdin io.Reader, path string) ([]byte, error) {
	var reader io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		defer file.Close()
		reader = file
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("import: read input: %w", err)
	}
	if len(data) > maxImportFileSize {
		return nil, usageErrorf("import: input exceeds %d MiB limit", maxImportFileSize>>20)
	}
	return data, nil
}
