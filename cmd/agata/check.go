package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the unit tree",
		Long: `Validate every manifest and load every service: unknown references,
name conflicts, dependency cycles and singletons a service uses without
declaring them are reported. Exits non-zero on the first error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := opts.broker(cmd)
			if err != nil {
				return err
			}

			report, err := b.Dependencies()
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d services, %d singletons, %d actions, %d plugins\n",
				len(report.Services), len(report.Singletons), len(report.Actions), len(report.Plugins))

			return err
		},
	}
}
