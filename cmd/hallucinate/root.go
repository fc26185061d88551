package main

import (
	"github.com/spf13/cobra"
)

var (
	flagNoColor             bool
	flagOpenAlexKey         string
	flagS2APIKey            string
	flagOutput              string
	flagDblpOffline         string
	flagOpenAlexOffline     string
	flagUpdateDblp          string
	flagDisableDBs          string
	flagCheckOpenAlexAuthors bool
	flagConfigFile          string
	flagMetrics             bool
)

var rootCmd = &cobra.Command{
	Use:   "hallucinate [references.json]",
	Short: "Verify bibliographic references against CrossRef, arXiv, OpenAlex, Semantic Scholar, and DBLP",
	Long: `hallucinate checks whether each reference in a pre-extracted references
file actually exists, by querying a set of bibliographic databases and
caching the results. PDF text extraction and reference segmentation happen
upstream of this tool; it consumes their output as a JSON array of
references (see internal/verify/types.Reference).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagOpenAlexKey, "openalex-key", "", "OpenAlex API key (enables the online backend, raises quota)")
	rootCmd.PersistentFlags().StringVar(&flagS2APIKey, "s2-api-key", "", "Semantic Scholar API key (raises quota)")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "Write verdicts as JSON to this file (without it, a summary tally is printed to stdout)")
	rootCmd.PersistentFlags().StringVar(&flagDblpOffline, "dblp-offline", "", "Path to a local DBLP SQLite FTS5 index (disables DBLP Online)")
	rootCmd.PersistentFlags().StringVar(&flagOpenAlexOffline, "openalex-offline", "", "Path to a local OpenAlex inverted-index file (disables OpenAlex Online)")
	rootCmd.PersistentFlags().StringVar(&flagUpdateDblp, "update-dblp", "", "Build or refresh the offline DBLP index at PATH and exit (not implemented by this tool)")
	rootCmd.PersistentFlags().StringVar(&flagDisableDBs, "disable-dbs", "", "Comma-separated backend names to omit (e.g. \"arXiv,DBLP\")")
	rootCmd.PersistentFlags().BoolVar(&flagCheckOpenAlexAuthors, "check-openalex-authors", false, "Downgrade an OpenAlex Found to NotFound when no author overlaps the reference")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to a hallucinator.toml config file")
	rootCmd.PersistentFlags().BoolVar(&flagMetrics, "metrics", false, "Print cache-hit and backend-latency metrics to stderr after the run")
}
