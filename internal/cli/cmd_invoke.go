package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/spf13/cobra"
)

func newInvokeCommand(deps commandDeps) *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "invoke <command>",
		Short: "Run a desktop bridge command and print its JSON response",
		Long: "invoke accepts the command names used by the desktop front end\n" +
			"(" + strings.Join(bridgeCommands, ", ") + ")\n" +
			"and prints {\"ok\":true,\"data\":...} or {\"ok\":false,\"error\":\"...\"}.\n" +
			"Failures inside the command are reported in the response, not the exit code.",
		Example: "  registry invoke greet --args '{\"name\":\"Ali\"}'\n" +
			"  registry invoke get_member_by_cnic --args '{\"cnicNumber\":\"35202-1234567-1\"}'\n" +
			"  echo '{\"id\":4}' | registry invoke delete_member --args -",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("invoke requires exactly one command name")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInvokeArgs(cmd.InOrStdin(), rawArgs)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), deps, cmd.CommandPath()+" "+args[0], func(ctx context.Context, s *session) error {
				resp := app.NewBridge(s.members).Invoke(ctx, args[0], payload)
				if !resp.OK {
					s.logger.Info("bridge command failed", "bridge_command", args[0], "error", resp.Error)
				}
				return printJSON(deps.out, resp)
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "JSON arguments, or - to read them from stdin")
	return cmd
}

var bridgeCommands = []string{
	app.CommandAddMember,
	app.CommandGetAllMembers,
	app.CommandGetMemberByCNIC,
	app.CommandUpdateMember,
	app.CommandDeleteMember,
	app.CommandGreet,
}

func readInvokeArgs(stdin io.Reader, raw string) (json.RawMessage, error) {
	if strings.TrimSpace(raw) == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, 64<<20))
		if err != nil {
			return nil, fmt.Errorf("read invoke arguments: %w", err)
		}
		raw = string(data)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, usageErrorf("invoke --args must be valid JSON")
	}
	return json.RawMessage(raw), nil
}
