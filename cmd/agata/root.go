package main

import (
	"github.com/spf13/cobra"

	"github.com/xraph/agata"
	errors2 "github.com/xraph/agata/errors"
)

type rootOptions struct {
	configFile string
	logLevel   string
	discovery  agata.DiscoveryConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "agata",
		Short: "Inspect agata unit manifests",
		Long: `Inspect a tree of agata unit manifests.

Manifests are discovered the same way a broker discovers them:
  singletons  **/*.singleton.yaml
  actions     **/*.action.yaml
  plugins     **/*.plugin.yaml
  services    */index.yaml

No unit code runs. Every manifest is bound to placeholder code, so the
commands report declaration errors, cycles and missing declarations only.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file; its discovery section is used")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level when no config file is given")
	flags.StringVar(&opts.discovery.Root, "root", "", "root directory of the unit tree")
	flags.StringVar(&opts.discovery.Singletons, "singletons", "singletons", "singleton manifests directory")
	flags.StringVar(&opts.discovery.Actions, "actions", "actions", "action manifests directory")
	flags.StringVar(&opts.discovery.Plugins, "plugins", "plugins", "plugin manifests directory")
	flags.StringVar(&opts.discovery.Services, "services", "services", "service manifests directory")

	cmd.AddCommand(newDepsCmd(opts), newCheckCmd(opts))

	return cmd
}

// config merges the config file with the flags set on the command line.
func (o *rootOptions) config(cmd *cobra.Command) (agata.Config, error) {
	cfg := agata.DefaultConfig()
	cfg.Logging.Level = o.logLevel
	cfg.Logging.Format = "console"
	cfg.Discovery = o.discovery

	if o.configFile != "" {
		loaded, err := agata.LoadConfig(o.configFile)
		if err != nil {
			return agata.Config{}, err
		}

		cfg.Logging = loaded.Logging
		cfg.Discovery = loaded.Discovery

		flags := cmd.Flags()
		override := map[string]*string{
			"root":       &cfg.Discovery.Root,
			"singletons": &cfg.Discovery.Singletons,
			"actions":    &cfg.Discovery.Actions,
			"plugins":    &cfg.Discovery.Plugins,
			"services":   &cfg.Discovery.Services,
		}

		for name, dst := range override {
			if flags.Changed(name) {
				*dst, _ = flags.GetString(name)
			}
		}
	}

	if cfg.Discovery.Root == "" {
		return agata.Config{}, errors2.ErrConfigError("no unit tree: set --root or discovery.root", nil)
	}

	return cfg, cfg.Validate()
}

// broker builds a broker over the manifests alone.
func (o *rootOptions) broker(cmd *cobra.Command) (*agata.Broker, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}

	return agata.New(agata.Definitions{},
		agata.WithConfig(cfg),
		agata.WithCatalog(agata.NewManifestCatalog()),
	)
}
