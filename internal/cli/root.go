package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	JSON       bool
	Quiet      bool
	ConfigPath string
	DataDir    string
	EnvFile    string
	LogLevel   string
}

type commandDeps struct {
	out     io.Writer
	errOut  io.Writer
	globals *GlobalOptions
	build   BuildInfo
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		out:     out,
		errOut:  os.Stderr,
		globals: globals,
		build:   build,
	}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Local CNIC member registry",
		Long: "registry keeps member identity records (name, guardian, gender, CNIC number,\n" +
			"dates and card scans) in a single SQLite file inside the data directory.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitCodeUsage, Err: err}
	})

	flags := cmd.PersistentFlags()
	flags.BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON")
	flags.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress non-essential output")
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to config.toml")
	flags.StringVar(&globals.DataDir, "data-dir", "", "Directory holding registry.db")
	flags.StringVar(&globals.EnvFile, "env-file", "", "Dotenv file with REGISTRY_* settings")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newMemberCommand(deps),
		newInvokeCommand(deps),
		newGreetCommand(deps),
		newBackupCommand(deps),
		newExportCommand(deps),
		newImportCommand(deps),
		newDoctorCommand(deps),
		newVersionCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}
