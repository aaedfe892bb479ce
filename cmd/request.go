package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/queuefab/queued-listener/internal"
	"github.com/queuefab/queued-listener/internal/logger"
)

var requestViper = viper.New() //nolint:gochecknoglobals // CMD

// requestCmd represents the request command
var requestCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "request",
	Short: "Send one request to a queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(cmd.Parent().Context())

		return RunService(cmd, args, requestViper, &internal.RequestConfig{}, internal.NewRequestService)
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().String("brokerurl", "nats://localhost:4222", "Broker URL")
	requestCmd.Flags().String("queue", "", "Target queue name")
	requestCmd.Flags().String("payload", "PING", "Request payload")
	requestCmd.Flags().Duration("timeout", 5*time.Second, "Reply timeout")
	if err := requestViper.BindPFlags(requestCmd.Flags()); err != nil {
		logger.GetLogger(requestCmd.Use).Error(err, "Unable to bind flags")
		panic(err)
	}
	requestViper.AutomaticEnv()
}
