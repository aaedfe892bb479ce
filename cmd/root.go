package cmd

import (
	"context"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/queuefab/queued-listener/internal/config"
	"github.com/queuefab/queued-listener/internal/logger"
	"github.com/queuefab/queued-listener/internal/model"
)

var cfgFile string //nolint:gochecknoglobals // cobra

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "queued-listener",
	Short: "Bind services to message-queue listeners",
	Long: `Adapts a request-processing service to a point-to-point message-queue
transport. The service receives serialized requests delivered through a
queue derived from a messaging-fabric connection string, and replies are
routed back through the same fabric.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context, args []string) {
	ctx = context.WithValue(ctx, model.CtxKeyCmd, strings.Join(append([]string{rootCmd.Use}, args...), " "))
	ctx = context.WithValue(ctx, model.CtxKeyConfigAccessor, config.ViperAccessor{Viper: viper.GetViper()})
	rootCmd.SetArgs(args)
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		logger.GetLogger(rootCmd.Use).Error(err, "Bad", "args", args)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.queued-listener.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".queued-listener")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.GetLogger(rootCmd.Use).Info("Using config file", "path", viper.ConfigFileUsed())
	}
}

// RunService unmarshals the command's configuration and runs the service.
func RunService(cmd *cobra.Command, args []string, vpr *viper.Viper, cfg interface{}, newService model.NewService) error {
	commandLine := cmd.Context().Value(model.CtxKeyCmd)
	log := logger.GetLogger(cmd.Use).WithValues(logger.KeyCmd, commandLine)

	if err := vpr.Unmarshal(cfg); err != nil {
		return errors.WrapIf(err, "unmarshaling config")
	}

	return errors.Wrap(newService(cmd.Context(), cfg, log).Run(args), "service run")
}
