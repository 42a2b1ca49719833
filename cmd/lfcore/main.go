package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lfcore/config"
	"lfcore/log"
)

var (
	version = "0.1.0"

	configFlag    string
	reclaimerFlag string
	capacityFlag  int
	debugFlag     bool

	rootCmd = &cobra.Command{
		Use:           "lfcore",
		Short:         "lfcore - lock-free stack and queue with safe memory reclamation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lfcore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lfcore version %s\n", version)
		},
	}
)

// loadConfig reads --config and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("reclaimer") {
		cfg.Core.Reclaimer = reclaimerFlag
	}
	if flags.Changed("capacity") {
		cfg.Core.Capacity = capacityFlag
	}
	if debugFlag {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Initialize(cfg.Log)
	return cfg, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Path to a JSON config file")
	pf.StringVar(&reclaimerFlag, "reclaimer", "hazard", "Reclamation scheme: hazard or epoch")
	pf.IntVar(&capacityFlag, "capacity", 0, "Bound each structure to this many nodes (0 is unbounded)")
	pf.BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, stressCmd, reportsCmd, versionCmd)
}

func main() {
	defer log.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Close()
		os.Exit(1)
	}
}
