// Command modelcore is both a one-shot CLI and the process a host talks
// to over the bridge protocol: `modelcore serve` runs the line-delimited
// JSON loop, while run/plan/exec/demo/doctor/models/context give a human
// operator the same operations from a terminal. Modeled on
// bartekus-stagecraft's cobra root command composition — the teacher
// itself ships no CLI, so this entry point is adopted wholesale from the
// one example repo in the pack that depends on cobra.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelcore/agent/core"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "modelcore",
		Short:         "Natural-language-driven modeling agent core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	loadCfg := func() (*core.Config, error) {
		return core.LoadConfig(configPath)
	}

	root.AddCommand(newServeCommand(loadCfg))
	root.AddCommand(newRunCommand(loadCfg))
	root.AddCommand(newPlanCommand(loadCfg))
	root.AddCommand(newExecCommand(loadCfg))
	root.AddCommand(newDemoCommand(loadCfg))
	root.AddCommand(newDoctorCommand(loadCfg))
	root.AddCommand(newModelsCommand(loadCfg))
	root.AddCommand(newContextCommand(loadCfg))

	return root
}
