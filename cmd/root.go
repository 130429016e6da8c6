package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Alturino/storefront/internal/common/constants"
	"github.com/Alturino/storefront/internal/log"
)

func Start() {
	// bootstrap logger until the command has read its config
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str(log.KeyAppName, constants.AppStorefront).
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{Use: constants.AppStorefront}
	commands := []*cobra.Command{
		{
			Use:   "storefront",
			Short: "Run the storefront http api",
			Run: func(cmd *cobra.Command, args []string) {
				RunStorefront(cmd.Context())
			},
		},
		{
			Use:   "notification",
			Short: "Run the quote notification retry worker",
			Run: func(cmd *cobra.Command, args []string) {
				RunNotificationWorker(cmd.Context())
			},
		},
	}
	rootCmd.AddCommand(commands...)
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
