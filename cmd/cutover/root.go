// Command cutover manages a blue/green deployment pair: deploy a
// version, cut traffic over to it, inspect status, roll back.
//
// Exit codes: 0 on success, 1 on infrastructure errors, 2 when an
// operation was rejected or timed out.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

var exitCode = exitOK

var (
	flagEnvFile    string
	flagKubeconfig string
	flagNamespace  string
	flagApp        string
	flagEngine     string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "cutover",
	Short:         "Blue/green deployment lifecycle manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagEnvFile, "env-file", "", "path to a .env configuration file")
	pf.StringVar(&flagKubeconfig, "kubeconfig", "", "path to kubeconfig (defaults to in-cluster when unset in config)")
	pf.StringVarP(&flagNamespace, "namespace", "n", "", "cluster namespace")
	pf.StringVar(&flagApp, "app", "", "managed application name")
	pf.StringVar(&flagEngine, "engine", "", "workflow engine: sync, durable, dbos")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(deployCmd, switchCmd, statusCmd, rollbackCmd)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		if exitCode == exitOK {
			exitCode = exitError
		}
	}
	return exitCode
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}
