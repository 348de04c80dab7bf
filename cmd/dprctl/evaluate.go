package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/evaluation"
	"github.com/LUMINOUX-HEHE/DPR/internal/management"
)

var errEvaluationFailed = errors.New("evaluation did not complete")

func (c *cli) uploadCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a PDF report and start its evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.EqualFold(filepath.Ext(path), ".pdf") {
				return fmt.Errorf("%s: only PDF files are accepted", path)
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			name := filepath.Base(path)
			ctrl := management.NewController(c.client, 0)
			jobID, err := ctrl.Upload(cmd.Context(), name, f)
			if err != nil {
				return fmt.Errorf("upload failed: %s", dpr.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s uploaded. Evaluation started.\n", name)
			fmt.Fprintf(out, "job id: %s\n", jobID)
			if !watch {
				return nil
			}
			return c.follow(cmd, jobID, c.pollInterval(interval))
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the evaluation until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Status poll interval (default APP_DPR_POLL_INTERVAL_MS)")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the evaluation state of an uploaded report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			if watch {
				return c.follow(cmd, jobID, c.pollInterval(interval))
			}
			resp, err := c.client.Status(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("status failed: %s", dpr.UserMessage(err))
			}
			return printStatus(cmd.OutOrStdout(), jobID, resp)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the evaluation finishes")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Status poll interval (default APP_DPR_POLL_INTERVAL_MS)")
	return cmd
}

// follow polls jobID through an evaluation.Watcher, printing each lifecycle
// change, and prints the report once polling stops.
func (c *cli) follow(cmd *cobra.Command, jobID string, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w := evaluation.NewWatcher(ctx, c.client, interval)
	w.Watch(jobID)
	defer w.Stop()

	out := cmd.OutOrStdout()
	tick := interval / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var (
		lastLifecycle dpr.Lifecycle
		lastPollErr   string
	)
	for {
		snap := w.Snapshot()
		if snap.Polls > 0 && snap.Lifecycle != lastLifecycle {
			lastLifecycle = snap.Lifecycle
			fmt.Fprintf(out, "[%3d%%] %s\n", snap.Progress, snap.Lifecycle)
		}
		if snap.LastPoll != "" && snap.LastPoll != lastPollErr {
			lastPollErr = snap.LastPoll
			log.Warn().Str("job_id", jobID).Str("error", snap.LastPoll).Msg("status poll failed, retrying")
		}
		if !snap.Polling() {
			return printSnapshot(out, snap)
		}

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

func printStatus(out io.Writer, jobID string, resp *dpr.StatusResponse) error {
	lifecycle := resp.LifecycleStatus
	if lifecycle == "" {
		lifecycle = dpr.LifecycleNotStarted
	}
	fmt.Fprintf(out, "Job:       %s\n", jobID)
	if resp.Filename != "" {
		fmt.Fprintf(out, "File:      %s\n", resp.Filename)
	}
	fmt.Fprintf(out, "Lifecycle: %s\n", lifecycle)
	fmt.Fprintf(out, "Progress:  %d%%\n", evaluation.Progress(lifecycle))

	switch {
	case lifecycle == dpr.LifecycleCompleted && resp.HasResult():
		analysis, err := dpr.DecodeAnalysis(resp.Result)
		if err != nil {
			return fmt.Errorf("%w: result could not be decoded: %v", errEvaluationFailed, err)
		}
		printAnalysis(out, analysis)
	case lifecycle == dpr.LifecycleFailed:
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Errorf("%w: %s", errEvaluationFailed, msg)
	}
	return nil
}

func printSnapshot(out io.Writer, snap evaluation.Snapshot) error {
	fmt.Fprintf(out, "Job:       %s\n", snap.JobID)
	if snap.Filename != "" {
		fmt.Fprintf(out, "File:      %s\n", snap.Filename)
	}
	fmt.Fprintf(out, "Lifecycle: %s\n", snap.Lifecycle)
	fmt.Fprintf(out, "Progress:  %d%%\n", snap.Progress)

	switch snap.State {
	case evaluation.StateCompleted:
		printAnalysis(out, snap.Analysis)
	case evaluation.StateFailed:
		return fmt.Errorf("%w: %s", errEvaluationFailed, snap.Error)
	case evaluation.StateDecodeFailed:
		return fmt.Errorf("%w: result could not be decoded: %s", errEvaluationFailed, snap.Error)
	}
	return nil
}

func printAnalysis(out io.Writer, a *dpr.Analysis) {
	if a == nil {
		return
	}
	fmt.Fprintln(out)
	if a.HasScore {
		fmt.Fprintf(out, "Score:      %d/100\n", a.Score)
	} else {
		fmt.Fprintln(out, "Score:      -")
	}
	if a.RiskLevel != "" {
		fmt.Fprintf(out, "Risk:       %s\n", a.RiskLevel)
	}
	if a.ExtractionConfidence != "" {
		fmt.Fprintf(out, "Confidence: %s\n", a.ExtractionConfidence)
	}
	if a.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", a.Summary)
	}

	fmt.Fprintln(out, "\nStructure checklist:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range evaluation.Rows(a) {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\n", row.Label, row.Presence, row.Score, row.Status, row.Flag)
	}
	_ = tw.Flush()

	printList(out, "Risk factors", a.RiskFactors)
	printList(out, "Compliance observations", a.ComplianceObservations)
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}
