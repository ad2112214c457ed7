// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/echoguard/echoguard-go/cmd/file"
	"github.com/echoguard/echoguard-go/cmd/serve"
	"github.com/echoguard/echoguard-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "echoguard",
		Short: "EchoGuard underwater acoustic event detection",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		file.Command(settings),
	)
	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the TFLite model file")
	rootCmd.PersistentFlags().BoolVar(&settings.Model.Sandbox, "sandbox", viper.GetBool("model.sandbox"), "Run without a model file using the deterministic scorer")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
