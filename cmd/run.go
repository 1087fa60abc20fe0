package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/observability"
	"github.com/xkilldash9x/webactions/internal/script"
)

// ErrStepsFailed is returned by run --strict when a report contains failed steps.
var ErrStepsFailed = errors.New("one or more steps failed")

func newRunCmd() *cobra.Command {
	var (
		output string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "run <script.yaml>...",
		Short: "Run action scripts in sequence in one browser tab",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			// Load everything first so a typo fails before the browser starts.
			scripts := make([]*script.Script, 0, len(args))
			for _, path := range args {
				sc, err := script.LoadFile(path)
				if err != nil {
					return err
				}
				scripts = append(scripts, sc)
			}

			var reports []*script.Report
			runErr := withSession(ctx, cfg, func(ctx context.Context, s *browser.Session) error {
				runner := script.NewRunner(s, logger)
				for _, sc := range scripts {
					report, err := runner.Run(ctx, sc)
					if report != nil {
						reports = append(reports, report)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeJSON(out, reports); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			if strict {
				for _, r := range reports {
					if !r.OK {
						logger.Warn("Script had failing steps.", zap.String("script", r.Name), zap.Int("failed", len(r.Failed())))
						return ErrStepsFailed
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON reports to this file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any step fails")
	return cmd
}
