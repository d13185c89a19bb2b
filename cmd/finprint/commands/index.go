package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildseas/finprint/pkg/pipeline"
)

var (
	indexInput string
	indexStore string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the reference index from extracted descriptors",
	Long: `Index folds the descriptors of a reference extraction into one
searchable index per curvature scale and stores the snapshot keyed by
the reference content, so an unchanged population is never re-indexed.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexInput, "input", "i", "", "reference extraction file (required)")
	indexCmd.Flags().StringVar(&indexStore, "store", "", "index store (directory or s3://bucket/prefix)")
	indexCmd.MarkFlagRequired("input")
	indexCmd.MarkFlagRequired("store")
	rootCmd.AddCommand(indexCmd)
}

func loadExtractFile(path string) (*extractFile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f extractFile
	if err := msgpack.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}
	f, err := loadExtractFile(indexInput)
	if err != nil {
		return err
	}
	ref, err := pipeline.BuildReference(f.Results, f.Identities)
	if err != nil {
		return err
	}
	fs, err := resolveStore(cmd.Context(), indexStore)
	if err != nil {
		return err
	}
	set, err := pipeline.LoadOrBuildIndexSet(cmd.Context(), fs, ref, cfg.Index, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d identities, %d scales\n",
		ref.Fingerprint()[:12], len(set.Identities()), len(set.Scales()))
	return nil
}
