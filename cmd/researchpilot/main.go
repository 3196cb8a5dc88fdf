package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "researchpilot",
		Short:        "Autonomous research missions: plan, search, analyze, hypothesize, report",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(&cfgPath), runCMD(&cfgPath), memoryCMD(&cfgPath))
	return root
}
