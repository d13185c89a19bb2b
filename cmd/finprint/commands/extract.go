package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildseas/finprint/pkg/cache"
	"github.com/wildseas/finprint/pkg/pipeline"
)

var (
	extractManifest string
	extractOutput   string
	extractCacheDir string
	extractWorkers  int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract contour descriptors from a photo manifest",
	Long: `Extract runs the full descriptor pipeline over every photograph in
the manifest: keypoint location, boundary tracing, edge splitting,
multi-scale curvature and descriptor sampling. Subjects whose contour
cannot be traced are recorded with the stage they dropped out at; they
do not stop the batch.

With --cache-dir, results are keyed by photo content and reused on
later runs.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractManifest, "manifest", "m", "", "photo manifest (YAML, required)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "descriptors.bin", "output file")
	extractCmd.Flags().StringVar(&extractCacheDir, "cache-dir", "", "persistent extraction cache directory")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "extraction workers (0 = all CPUs)")
	extractCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}
	m, err := loadManifest(extractManifest)
	if err != nil {
		return err
	}
	subjects, identities, err := m.subjects(cfg)
	if err != nil {
		return err
	}

	opts := []pipeline.ExtractorOption{pipeline.WithLogger(slog.Default())}
	if extractCacheDir != "" {
		c, err := cache.NewBadger(cache.BadgerOptions{Dir: extractCacheDir})
		if err != nil {
			return err
		}
		defer c.Close()
		opts = append(opts, pipeline.WithCache(c))
	}
	e, err := pipeline.NewExtractor(cfg, opts...)
	if err != nil {
		return err
	}

	results, err := e.ExtractBatch(cmd.Context(), subjects, extractWorkers)
	if err != nil {
		return err
	}

	blob, err := msgpack.Marshal(&extractFile{Results: results, Identities: identities})
	if err != nil {
		return err
	}
	if err := os.WriteFile(extractOutput, blob, 0o644); err != nil {
		return err
	}

	ok := 0
	for i := range results {
		if results[i].OK() {
			ok++
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s at %s: %s\n",
				results[i].Subject, results[i].FailedStage, results[i].Reason)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "extracted %d/%d subjects -> %s\n", ok, len(results), extractOutput)
	return nil
}
