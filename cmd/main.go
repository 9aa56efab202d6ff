package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/txc/config"
	"tidbyt.dev/txc/logging"
	"tidbyt.dev/txc/storage"
)

var rootCmd = &cobra.Command{
	Use:          "txc",
	Short:        "TransXChange timetable loader",
	Long:         "Extracts, transforms and loads TransXChange bus timetables",
	SilenceUsage: true,
}

var (
	configPath string
	envFile    string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "", ".env", "Env file providing "+config.DatabaseURLEnv)
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "Log level, overriding the config")
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(seedStopsCmd)
	rootCmd.AddCommand(seedLocalitiesCmd)
	rootCmd.AddCommand(seedAdminAreasCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logging.NewTextLogger(os.Stderr, level), nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	s, err := cfg.Storage.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}
	return s, nil
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}
