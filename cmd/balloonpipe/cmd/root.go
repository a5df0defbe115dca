package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/balloonpipe/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configLoader *config.Loader
	cfgFile      string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "balloonpipe",
	Short: "Dimension detection and fusion pipeline for engineering drawings",
	Long: `balloonpipe ingests a PDF or raster engineering drawing, runs an OCR
adapter and a vision-language-model adapter over each page, and fuses
their output into ballooned dimensions with stable IDs, bounding boxes,
and drawing zones.

Examples:
  balloonpipe process drawing.pdf
  balloonpipe process drawing.png --format json
  balloonpipe serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and runs it.
// Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command, for tests that want to
// invoke subcommands without os.Exit.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, /etc/balloonpipe, $XDG_CONFIG_HOME/balloonpipe or $HOME/.config/balloonpipe)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	configLoader = config.NewLoader()
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// GetConfig loads the merged configuration (file, env, flags,
// defaults) and sets up logging from it. Without --config the result is
// not validated (process and serve call Validate themselves); a file
// named by --config is validated on load, and a load error exits.
func GetConfig() *config.Config {
	loader := GetConfigLoader()

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = loader.LoadWithFile(cfgFile)
	} else {
		cfg, err = loader.LoadWithoutValidation()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
