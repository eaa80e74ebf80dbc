/*
Package main is the entry point for the recon command-line application.

recon discovers the subdomains of a registrable domain through Certificate
Transparency search and checks which of them answer over HTTPS or HTTP.
It runs either as an HTTP API (serve) or as one-shot commands that print
JSON to stdout (subdomains, scan).

Configuration comes from recon.yaml (or the file named by --config or
$RECON_CONFIG) with environment overrides. Interrupts cancel in-flight work.
*/
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go-recon/config"
	"go-recon/models"
	"go-recon/recon"
	"go-recon/server"
)

// Global flags
var (
	configPath string
	cfg        *config.Config
)

// Flags specific to the scan command
var (
	scanLimit       int
	scanConcurrency int
	scanRate        float64
)

var rootCmd = &cobra.Command{
	Use:           "recon",
	Short:         "recon - subdomain discovery and liveness probing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("RECON_CONFIG", configPath); err != nil {
				return err
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		cfg.ConfigureLogging()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return server.Start(cmd.Context(), cfg)
	},
}

var subdomainsCmd = &cobra.Command{
	Use:   "subdomains <domain>",
	Short: "List subdomains found in Certificate Transparency logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := recon.FromConfig(cfg, nil).ListSubdomains(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <domain>",
	Short: "Discover subdomains and probe each one over HTTPS and HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := recon.FromConfig(cfg, nil)

		settings := manager.Settings()
		if cmd.Flags().Changed("concurrency") {
			settings.Concurrency = scanConcurrency
		}
		if cmd.Flags().Changed("rate") {
			settings.ProbeRate = scanRate
		}
		if settings != manager.Settings() {
			if err := manager.ApplySettings(settings); err != nil {
				return err
			}
		}

		report, err := manager.Scan(cmd.Context(), args[0], scanLimit)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default ./recon.yaml)")

	scanCmd.Flags().IntVarP(&scanLimit, "limit", "l", 0, "Probe only the first N hostnames in sorted order (0 for all)")
	scanCmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", recon.MaxConcurrency, "Maximum probes in flight")
	scanCmd.Flags().Float64Var(&scanRate, "rate", 0, "Maximum probe starts per second (0 for unlimited)")

	rootCmd.AddCommand(serveCmd, subdomainsCmd, scanCmd)
}

func printJSON[T models.ScanReport | models.SubdomainList](v *T) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logrus.Fatal(err)
	}
}
