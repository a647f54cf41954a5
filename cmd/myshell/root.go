package main

import (
	"github.com/spf13/cobra"

	"smallshell/internal/config"
	"smallshell/internal/shell"
)

func NewRootCmd() *cobra.Command {
	var (
		configFile string
		strategy   string
		debug      bool
	)

	root := &cobra.Command{
		Use:           "myshell",
		Short:         "Minimal shell that runs programs in the foreground or background",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile, strategy, debug)
			if err != nil {
				return err
			}

			s, err := shell.New(cfg)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}

	root.Flags().StringVarP(&configFile, "config", "c", "config.yml", "path to the YAML configuration file")
	root.Flags().StringVar(&strategy, "strategy", "", `termination detection: "signal" or "poll"`)
	root.Flags().BoolVar(&debug, "debug", false, "log diagnostics to stderr")

	return root
}

// loadConfig reads the configuration file and applies flags that were
// set explicitly on the command line.
func loadConfig(cmd *cobra.Command, file, strategy string, debug bool) (*config.Config, error) {
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy = strategy
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
