package cli

import (
	"fmt"
	"strings"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/spf13/cobra"
)

func newGreetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "greet <name>",
		Short:   "Print a greeting; a quick check that the binary runs",
		Example: "  registry greet Ayesha",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("greet requires a name")
			}
			message := app.Greet(strings.Join(args, " "))
			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, map[string]string{"message": message}))
			}
			_, err := fmt.Fprintln(deps.out, message)
			return mapCommandError(err)
		},
	}
}
