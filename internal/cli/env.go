package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/linecore/internal/config"
)

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "env",
		Short:             "List the environment variables linecore reads",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, v := range config.EnvVars() {
				fmt.Fprintf(out, "%-26s %-22s %s\n", v.Name, v.Field, v.Usage)
			}
		},
	}
}
