package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/management"
)

type filterFlags struct {
	query  string
	status string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Match filename or job id (case-insensitive)")
	cmd.Flags().StringVar(&f.status, "status", management.StatusAll, "Lifecycle status filter, or ALL")
}

// load fetches the collection into a fresh controller and applies the filter.
func (c *cli) load(ctx context.Context, f filterFlags) (*management.Controller, error) {
	ctrl := management.NewController(c.client, 0)
	if err := ctrl.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch DPRs: %s", dpr.UserMessage(err))
	}
	ctrl.SetQuery(f.query)
	if err := ctrl.SetStatusFilter(strings.ToUpper(strings.TrimSpace(f.status))); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// applySort toggles the controller until key is active in the wanted direction.
// An empty order keeps the controller's default direction for key.
func applySort(ctrl *management.Controller, key management.SortKey, order string) error {
	var desc bool
	switch strings.ToLower(order) {
	case "":
		desc = key == management.SortDate
	case "asc":
	case "desc":
		desc = true
	default:
		return fmt.Errorf("unknown sort order %q (want asc or desc)", order)
	}
	for i := 0; i < 2; i++ {
		if k, d := ctrl.Sort(); k == key && d == desc {
			return nil
		}
		if err := ctrl.ToggleSort(key); err != nil {
			return err
		}
	}
	return nil
}

// selectIDs selects ids, failing on any the backend does not know.
func selectIDs(ctrl *management.Controller, ids []string) error {
	known := map[string]bool{}
	for _, job := range ctrl.Jobs() {
		known[job.JobID] = true
	}
	var unknown []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !known[id] {
			unknown = append(unknown, id)
			continue
		}
		if !contains(ctrl.Selected(), id) {
			ctrl.Toggle(id)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown DPR id(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (c *cli) listCmd() *cobra.Command {
	var (
		filter filterFlags
		sortBy string
		order  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted DPRs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := c.load(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if err := applySort(ctrl, management.SortKey(strings.ToLower(sortBy)), order); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := ctrl.Rows()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No DPRs found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB ID\tFILENAME\tSTATUS\tUPLOADED\tSCORE")
			for _, row := range rows {
				uploaded := "-"
				if !row.Job.UploadDate.IsZero() {
					uploaded = row.Job.UploadDate.Format("2006-01-02 15:04")
				}
				score := "-"
				if row.HasScore {
					score = strconv.Itoa(row.Score)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Job.JobID, row.Job.Filename, row.Job.Status, uploaded, score)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d DPRs\n", len(rows), ctrl.Total())
			return nil
		},
	}
	filter.register(cmd)
	cmd.Flags().StringVar(&sortBy, "sort", string(management.SortDate), "Sort column: date, filename, status, id")
	cmd.Flags().StringVar(&order, "order", "", "Sort direction: asc or desc (default desc for date, asc otherwise)")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete JOB_ID...",
		Short: "Delete one or more DPRs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := c.load(cmd.Context(), filterFlags{status: management.StatusAll})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				id := strings.TrimSpace(args[0])
				if err := selectIDs(ctrl, args); err != nil {
					return err
				}
				if err := ctrl.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to delete DPR %s: %s", id, dpr.UserMessage(err))
				}
				fmt.Fprintln(out, "DPR deleted.")
				return nil
			}

			if err := selectIDs(ctrl, args); err != nil {
				return err
			}
			requested := len(ctrl.Selected())
			err = ctrl.DeleteSelected(cmd.Context())
			var bulk *management.BulkDeleteError
			switch {
			case errors.As(err, &bulk):
				return fmt.Errorf("failed to delete %d of %d DPRs (%s)", len(bulk.Failed), bulk.Requested, strings.Join(bulk.Failed, ", "))
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "Deleted %d DPRs.\n", requested)
			return nil
		},
	}
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		filter filterFlags
		all    bool
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [JOB_ID...]",
		Short: "Export DPR records as JSON or CSV",
		Long: `Export writes the named DPRs, or with --all every DPR matching the filter,
exactly as the backend returned them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one DPR id, or pass --all")
			}
			ctrl, err := c.load(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if all {
				ctrl.SelectAll()
			}
			if err := selectIDs(ctrl, args); err != nil {
				return err
			}

			var export *management.Export
			switch strings.ToLower(format) {
			case "json":
				export, err = ctrl.ExportSelected()
			case "csv":
				export, err = ctrl.ExportSelectedCSV()
			default:
				return fmt.Errorf("unknown export format %q (want json or csv)", format)
			}
			if errors.Is(err, management.ErrEmptySelection) {
				return errors.New("no DPRs matched; nothing to export")
			}
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(export.Body)
				return err
			}
			if err := os.WriteFile(output, export.Body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d DPRs to %s\n", export.Count, output)
			return nil
		},
	}
	filter.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Export every DPR matching the filter")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
