package commands

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wildseas/finprint/pkg/pipeline"
)

var (
	identifyManifest string
	identifyRef      string
	identifyStore    string
	identifyK        int
	identifyTop      int
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Match query photos against a reference index",
	Long: `Identify extracts descriptors for every query photograph and scores
them against the reference population. Evidence from all query photos
is summed per identity; the most negative score is the strongest
match.`,
	RunE: runIdentify,
}

func init() {
	identifyCmd.Flags().StringVarP(&identifyManifest, "manifest", "m", "", "query photo manifest (YAML, required)")
	identifyCmd.Flags().StringVar(&identifyRef, "ref", "", "reference extraction file (required)")
	identifyCmd.Flags().StringVar(&identifyStore, "store", "", "index store (directory or s3://bucket/prefix)")
	identifyCmd.Flags().IntVarP(&identifyK, "neighbors", "k", 0, "nearest neighbors per descriptor (0 = config default)")
	identifyCmd.Flags().IntVar(&identifyTop, "top", 10, "identities to display")
	identifyCmd.MarkFlagRequired("manifest")
	identifyCmd.MarkFlagRequired("ref")
	rootCmd.AddCommand(identifyCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	bestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig()
	if err != nil {
		return err
	}
	k := identifyK
	if k <= 0 {
		k = cfg.Neighbors
	}

	refFile, err := loadExtractFile(identifyRef)
	if err != nil {
		return err
	}
	ref, err := pipeline.BuildReference(refFile.Results, refFile.Identities)
	if err != nil {
		return err
	}
	fs, err := resolveStore(cmd.Context(), identifyStore)
	if err != nil {
		return err
	}
	set, err := pipeline.LoadOrBuildIndexSet(cmd.Context(), fs, ref, cfg.Index, nil)
	if err != nil {
		return err
	}

	m, err := loadManifest(identifyManifest)
	if err != nil {
		return err
	}
	subjects, _, err := m.subjects(cfg)
	if err != nil {
		return err
	}
	e, err := pipeline.NewExtractor(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	results, err := e.ExtractBatch(cmd.Context(), subjects, 0)
	if err != nil {
		return err
	}

	scores, scored, err := pipeline.ScoreQueries(set, results, k)
	if err != nil {
		return err
	}
	if scored == 0 {
		return fmt.Errorf("no query subject produced descriptors")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  (%d/%d query photos scored, k=%d)\n",
		headerStyle.Render("match scores"), scored, len(results), k)
	ranked := scores.Ranked()
	if len(ranked) > identifyTop {
		ranked = ranked[:identifyTop]
	}
	for i, label := range ranked {
		line := fmt.Sprintf("%2d. %-24s %10.4f", i+1, label, scores[label])
		switch {
		case i == 0:
			line = bestStyle.Render(line)
		case scores[label] == 0:
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
