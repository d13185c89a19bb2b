package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "finprint",
	Short: "Individual animal identification from contour photographs",
	Long: `finprint - identify individual animals by the shape of a
distinguishing body contour (dorsal fin, fluke trailing edge).

The workflow runs in three steps:

  # Extract descriptors for the reference population
  finprint extract -m reference.yaml -o reference.bin

  # Build and store the searchable index
  finprint index -i reference.bin --store ./indexes

  # Match query photos against it
  finprint identify -m queries.yaml --store ./indexes --ref reference.bin

Manifests are YAML files listing one entry per photograph: the image
path, its segmentation mask, the known identity (reference only) and
the photographed side. Pipeline parameters live in an optional config
file shared by all three steps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "pipeline config file (YAML)")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
