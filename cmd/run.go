// cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/portal-sentry/internal/observability"
)

// newRunCmd creates the `run` command: a one-shot check of one account or of
// every stored account, without starting the daemon.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [account]",
		Short: "Run a login check now for one account, or all accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			if len(args) == 1 {
				outcome := components.Runner.RunAccountByName(ctx, args[0])
				fmt.Printf("%s: ok=%t %s\n", args[0], outcome.OK, outcome.Message)
				if !outcome.OK {
					return fmt.Errorf("run failed: %s", outcome.Message)
				}
				return nil
			}

			outcomes := components.Runner.RunAll(ctx)
			failed := 0
			for _, outcome := range outcomes {
				if !outcome.OK {
					failed++
				}
				fmt.Printf("ok=%t %s\n", outcome.OK, outcome.Message)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
			}
			return nil
		},
	}
	return runCmd
}
