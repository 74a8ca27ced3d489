package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csmcal/wf2wf/internal/config"
	"github.com/csmcal/wf2wf/internal/output"
)

var (
	// Global flags
	configFlag     string
	verboseFlag    bool
	noPromptFlag   bool
	timestampsFlag bool

	// Resolved configuration (loaded during PersistentPreRunE)
	wfConfig *config.Config
)

// NewRootCmd creates the root command for the wf2wf CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wf2wf",
		Short:         "Universal workflow-format converter",
		Long:          `wf2wf converts workflow descriptions between scientific workflow languages through a shared intermediate representation, tracking everything a target format cannot express in a loss side-car.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default ~/.wf2wf/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noPromptFlag, "no-prompt", false, "Headless mode: apply documented defaults without prompting (env: WF2WF_NO_PROMPT)")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", false, "Show timestamps in log output")

	rootCmd.AddCommand(NewConvertCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewInfoCmd())
	rootCmd.AddCommand(NewDiffCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals sets up logging and loads configuration.
func initializeGlobals(cmd *cobra.Command) error {
	loaded, err := config.Load(config.LoaderOptions{ConfigFlag: configFlag})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	wfConfig = loaded

	logCfg := output.LogConfig{Verbose: verboseFlag}
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	}
	output.SetupLogging(logCfg)

	return nil
}

// headlessMode resolves the prompt override: flag > env/config.
func headlessMode() bool {
	if noPromptFlag {
		return true
	}
	return wfConfig != nil && wfConfig.NoPrompt
}
