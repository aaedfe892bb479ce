package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/queuefab/queued-listener/internal"
	"github.com/queuefab/queued-listener/internal/logger"
)

var listenViper = viper.New() //nolint:gochecknoglobals // CMD

// listenCmd represents the listen command
var listenCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "listen",
	Short: "Run a demo echo service behind a queued listener",
	Long: `Binds a demo echo service to a queue derived from the connection
string. Without --connectionstring, the connection string is resolved from
the configuration store (Config.ServiceBus.ListenConnectionString).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(cmd.Parent().Context())

		return RunService(cmd, args, listenViper, &internal.ListenConfig{}, internal.NewListenService)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().String("connectionstring", "", "Literal connection string (Endpoint=sb://...;SharedAccessKeyName=...;SharedAccessKey=...)")
	listenCmd.Flags().String("transport", "nats", "Queue transport (nats or amqp)")
	listenCmd.Flags().String("brokerurl", "", "Broker URL override")
	listenCmd.Flags().String("queue", "", "Queue name override")
	listenCmd.Flags().String("pathprefix", "queues", "Path prefix of the demo handler")
	listenCmd.Flags().String("instance", "#1", "Service instance")
	listenCmd.Flags().String("otlpurl", "-", "OTLP trace collector address")
	listenCmd.Flags().String("response", "Hello ", "Response prefix of the demo handler")
	listenCmd.Flags().Int64("maxconcurrent", 16, "Max concurrently handled messages")
	listenCmd.Flags().String("vaultaddr", "", "Vault address for encrypted configuration values")
	listenCmd.Flags().String("vaulttoken", "", "Vault token")
	listenCmd.Flags().String("vaulttransitkey", "", "Vault transit key name")
	if err := listenViper.BindPFlags(listenCmd.Flags()); err != nil {
		logger.GetLogger(listenCmd.Use).Error(err, "Unable to bind flags")
		panic(err)
	}
	listenViper.AutomaticEnv()
}
