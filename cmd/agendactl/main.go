// cmd/agendactl/main.go
//
// agendactl is the operator's console for the reservation service: check
// availability, render the agenda grid, move and create reservations, and
// ask for table suggestions.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/maitredhq/maitred/internal/client"
	"github.com/maitredhq/maitred/internal/config"
)

var (
	serverURL  string
	authToken  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "agendactl",
	Short:         "Restaurant agenda and availability console",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newClient() *client.Client {
	return client.New(serverURL, authToken)
}

// controllerConfig derives controller tuning (debounce, cache TTL, limited
// ratio, retry policy) from the shared config file. The file is optional for
// the CLI; without one the controller falls back to its built-in defaults.
func controllerConfig() client.ControllerConfig {
	if _, err := os.Stat(configPath); err != nil {
		return client.ControllerConfig{}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", configPath).Msg("Ignoring unreadable config, using built-in defaults")
		return client.ControllerConfig{}
	}
	return cfg.Availability.ControllerConfig()
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MAITRED_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("MAITRED_AUTH_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("MAITRED_CONFIG", "configs/config.yaml"), "config file for availability tuning (optional)")

	rootCmd.AddCommand(
		availabilityCmd(),
		agendaCmd(),
		moveCmd(),
		createCmd(),
		suggestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
