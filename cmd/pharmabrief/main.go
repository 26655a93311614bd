package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/pharmabrief/internal/compose"
	"github.com/TobiSchelling/pharmabrief/internal/config"
	"github.com/TobiSchelling/pharmabrief/internal/logger"
	"github.com/TobiSchelling/pharmabrief/internal/pipeline"
	"github.com/TobiSchelling/pharmabrief/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pharmabrief",
	Short:   "Pharmaceutical intelligence briefs",
	Long:    "pharmabrief searches recent coverage of drugs, summarizes and classifies it, and reports a mechanism of action per drug.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init, models and version
		if cmd.Name() == "init" || cmd.Name() == "models" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnvFiles(); err != nil {
			return fmt.Errorf("loading env files: %w", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logger.InitLogger(level, cfg.Logging.File); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		if path != "" {
			logger.Log.Debugf("Using config %s", path)
		}

		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pharmabrief", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/pharmabrief/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose the LLM and search providers, then export their API keys.")
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported LLM providers and models",
	Run: func(cmd *cobra.Command, args []string) {
		providers := make([]string, 0, len(config.SupportedModels))
		for p := range config.SupportedModels {
			providers = append(providers, p)
		}
		sort.Strings(providers)

		for _, p := range providers {
			fmt.Printf("%s:\n", p)
			for _, m := range config.SupportedModels[p] {
				fmt.Printf("  %s\n", m)
			}
		}
	},
}

// --- analyze command ---

var (
	outputFormat string
	outputFile   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze DRUG [DRUG...]",
	Short: "Analyze one or more drugs and print the brief",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := compose.ParseFormat(outputFormat)
		if err != nil {
			return err
		}

		orch, err := pipeline.NewFromConfig(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
		defer cancel()

		report, err := orch.Analyze(ctx, args)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := compose.Render(w, report, format, time.Now()); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json, markdown or html")
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the report to a file instead of stdout")
}

// --- serve command ---

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		orch, err := pipeline.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		srv := server.New(orch, server.Options{RequestTimeout: cfg.RequestTimeout()})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, addr, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Interface to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}
