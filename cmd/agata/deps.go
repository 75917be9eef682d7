package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDepsCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Print the dependency report",
		Long: `Print, for every service, the units it starts in start order, and for
every unit its direct dependencies and dependents.

Examples:
  agata deps --root ./units
  agata deps --root ./units --format yaml
  agata deps -c agata.yaml --format json | jq '.services'`,
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

			out := cmd.OutOrStdout()

			switch format {
			case "text":
				return report.WriteText(out)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)

				if err := enc.Encode(report); err != nil {
					return err
				}

				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(report)
			default:
				return fmt.Errorf("unknown format %q (text, yaml, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, yaml or json")

	return cmd
}
