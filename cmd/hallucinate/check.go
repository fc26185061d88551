package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gianlucasb/hallucinator/internal/config"
	"github.com/gianlucasb/hallucinator/internal/verify/engine"
)

func runCheck(cmd *cobra.Command, args []string) error {
	if flagNoColor {
		color.NoColor = true
	}

	if flagUpdateDblp != "" {
		fmt.Fprintln(os.Stderr, "error: --update-dblp is not implemented by this tool; "+
			"the offline index builder is an external collaborator and out of scope here")
		os.Exit(1)
	}

	if len(args) != 1 {
		return errors.New("expected exactly one argument: path to a references JSON file")
	}

	refs, err := loadReferences(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(flagConfigFile, config.Overrides{
		OpenAlexKey:          nonEmptyPtr(flagOpenAlexKey),
		S2APIKey:             nonEmptyPtr(flagS2APIKey),
		DblpOfflinePath:      nonEmptyPtr(flagDblpOffline),
		OpenAlexOfflinePath:  nonEmptyPtr(flagOpenAlexOffline),
		DisabledDBs:          splitDisabled(flagDisableDBs),
		CheckOpenAlexAuthors: boolPtrIfSet(cmd, "check-openalex-authors", flagCheckOpenAlexAuthors),
	})
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg.ToEngineConfig())
	if err != nil {
		return fmt.Errorf("initialize verification engine: %w", err)
	}
	defer eng.Close()

	stopWatch := watchOfflineIndexes(cfg.DblpOfflinePath, cfg.OpenAlexOfflinePath)
	defer stopWatch()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownMetrics := setupMetrics(flagMetrics)
	defer shutdownMetrics(context.Background())

	printer := newProgressPrinter()
	verdicts := eng.Run(ctx, refs, printer.handle)

	if flagOutput != "" {
		if err := writeJSONReport(flagOutput, verdicts); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
	} else {
		printSummary(verdicts)
	}

	return nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitDisabled(csv string) *[]string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return &out
}

func boolPtrIfSet(cmd *cobra.Command, flag string, val bool) *bool {
	if cmd.Flags().Changed(flag) {
		return &val
	}
	return nil
}
