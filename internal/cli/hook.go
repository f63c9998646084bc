package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:       "hook <start|submit|end>",
	Short:     "Handle an agent hook event read from stdin",
	Long:      "Reads the hook JSON from stdin and asks the running palace server whether to offer a recall, a store or a review. Always exits 0 so a failing hook never blocks the host.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "submit", "end"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client := hooks.NewClient("http://" + cfg.ListenAddr())
		if err := hooks.Handle(client, args[0], os.Stdin, os.Stdout); err != nil {
			warnf("palace hook: %v", err)
			log.Debug("hook failed", "event", args[0], "server", client.URL(), "err", err)
		}
		return nil
	},
}
