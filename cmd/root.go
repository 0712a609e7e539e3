// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "crankdecoder",
	Short: "Crank/cam trigger decoder",
	Long:  `A real-time crank/cam trigger decoder: sync acquisition, RPM estimation, crank angle reconstruction, and per-tooth ignition timing from a toothed-wheel edge stream.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("decoder", "t", "", "decoder type override (missing_tooth, dual_wheel, basic_distributor, non360_dual)")
	rootCmd.PersistentFlags().Uint16P("teeth", "n", 0, "trigger tooth count override")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	viper.BindPFlag("decoder_type", rootCmd.PersistentFlags().Lookup("decoder"))
	viper.BindPFlag("trigger_teeth", rootCmd.PersistentFlags().Lookup("teeth"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(decodeCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
