package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"avoidance-core/internal/behavior"
	"avoidance-core/internal/config"
	"avoidance-core/internal/schema"
	"avoidance-core/services/avoidhelm"
)

var (
	scenarioPath string
	templatePath string

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted encounter offline and print one row per cycle",
		RunE:  runSimulate,
	}
)

func init() {
	simulateCmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario YAML file")
	simulateCmd.Flags().StringVar(&templatePath, "config", getEnv("BEHAVIOR_CONFIG", ""), "behavior template YAML file")
	_ = simulateCmd.MarkFlagRequired("scenario")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if templatePath == "" {
		return fmt.Errorf("--config is required")
	}
	validator, err := schema.NewTemplateValidator()
	if err != nil {
		return err
	}
	ts, err := config.FileLoader{Path: templatePath, Validator: validator}.Load(cmd.Context(), "")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	sc, err := avoidhelm.LoadScenario(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CYCLE\tX\tY\tHDG\tSPD\tACTIVE\tRANGE\tREL\tLOCK\tSTATE\tEVENTS")
	res, err := avoidhelm.Simulate(cmd.Context(), sc, ts, slog.Default(), func(r avoidhelm.SimRow) {
		var events []string
		for _, ev := range r.Events {
			events = append(events, ev.ObstacleID+":"+ev.Kind)
		}
		rng, rel, lock, state := "-", "-", "-", "-"
		if st, ok := closest(r.Behaviors); ok {
			rng, rel, state = behavior.FormatNum(st.Range, 1), behavior.FormatNum(st.Relevance, 2), st.State
			if st.SideLock != "" {
				lock = st.SideLock
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n", r.Cycle,
			behavior.FormatNum(r.Pose.X, 1), behavior.FormatNum(r.Pose.Y, 1),
			behavior.FormatNum(r.Pose.Heading, 1), behavior.FormatNum(r.Pose.Speed, 2),
			len(r.Behaviors), rng, rel, lock, state, strings.Join(events, " "))
	})
	if err := tw.Flush(); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d encounter(s)\n", len(res.Records))
	for _, r := range res.Records {
		fmt.Fprintf(out, "  %s min_range=%s cpa_events=%d resolved=%t\n",
			r.ObstacleKey(), behavior.FormatNum(r.MinRange, 2), r.CPAEvents, r.Resolved)
	}
	return nil
}

// closest picks the behavior with the smallest known range.
func closest(bs []avoidhelm.BehaviorStatus) (avoidhelm.BehaviorStatus, bool) {
	var (
		best  avoidhelm.BehaviorStatus
		found bool
	)
	for _, b := range bs {
		if b.Range < 0 {
			continue
		}
		if !found || b.Range < best.Range {
			best, found = b, true
		}
	}
	return best, found
}
