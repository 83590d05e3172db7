// Package main is the PharmaControl chat assistant entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/pharmacontrol/internal/profile"
	"github.com/hrygo/pharmacontrol/server"
)

var version = "0.1.0"

var (
	configFile string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pharmacontrol",
	Short: "PharmaControl inventory chat assistant",
	Long: `PharmaControl answers pharmacy staff questions about medications,
suppliers and users, renders PDF reports and emails a daily summary.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the daily report scheduler",
	RunE:  runServe,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report commands",
}

var reportRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Build today's reports and email them now",
	RunE:  runReport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("PharmaControl v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringVar(&envFile, "env-file", ".env", "Env file loaded before reading the environment")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flags.String("mode", "demo", `Mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "Address of server")
	flags.Int("port", 5000, "Port of server")
	flags.String("data", "./data", "Data directory")

	for _, key := range []string{"mode", "addr", "port", "data"} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", key, err)
			os.Exit(1)
		}
	}

	reportCmd.AddCommand(reportRunCmd)
	rootCmd.AddCommand(serveCmd, reportCmd, versionCmd)
}

func initConfig() error {
	profile.LoadDotEnv(envFile)

	if err := profile.SetDefaults(viper.GetViper()); err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	return nil
}

func loadProfile() (*profile.Profile, error) {
	p := profile.FromViper(viper.GetViper())
	p.Version = version
	if err := p.Validate(); err != nil {
		return nil, err
	}

	server.SetupLogger(os.Stderr, p.Mode, logLevel)
	return p, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := server.NewServer(ctx, p)
	if err != nil {
		return err
	}

	return s.Run(ctx)
}

func runReport(cmd *cobra.Command, _ []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := server.Build(ctx, p)
	if err != nil {
		return err
	}
	defer components.Close()

	res := components.Runner.RunOnce(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("report run finished with %d failure(s)", len(res.Failures))
	}
	return nil
}
