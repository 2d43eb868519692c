package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/ident"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/rollup"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

var statusFromFile string

var worksheetStatusCmd = &cobra.Command{
	Use:   "status <worksheet-id>",
	Short: "Show per-operation status rollup for a worksheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("worksheet id must be an integer: %w", err)
		}

		if statusFromFile != "" {
			raw, err := os.ReadFile(statusFromFile)
			if err != nil {
				return eris.Wrapf(err, "read %s", statusFromFile)
			}
			summary, last, err := summaryFromDump(id, raw)
			if err != nil {
				return err
			}
			formatWorksheetSummary(os.Stdout, summary)
			if last != "" {
				fmt.Printf("\nLatest activity: %s\n", last)
			}
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.GetWorksheet(ctx, id); err != nil {
			return err
		}
		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{WorksheetID: id})
		if err != nil {
			return err
		}

		formatWorksheetSummary(os.Stdout, rollup.SummarizeWorksheet(id, assignments))
		return nil
	},
}

// summaryFromDump rolls up an exported assignment dump instead of the
// store. Activity ids in the dump may have been mangled by an upstream
// float decode, so the raw bytes are round-trip checked and the trailing
// id is extracted from the original text.
func summaryFromDump(worksheetID int, raw []byte) (rollup.WorksheetSummary, string, error) {
	assignments, err := rollup.DecodeAssignments(raw)
	if err != nil {
		return rollup.WorksheetSummary{}, "", err
	}
	ident.CheckRoundTrip(raw, assignments)

	last := ""
	if id, err := ident.LastActivityID(raw); err == nil {
		last = id
	}
	return rollup.SummarizeWorksheet(worksheetID, assignments), last, nil
}

func formatWorksheetSummary(w io.Writer, ws rollup.WorksheetSummary) {
	fmt.Fprintf(w, "Worksheet %d: %d operations, %d%% complete\n\n",
		ws.WorksheetID, ws.Total, ws.CompletionPercentage)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tSTATUS\tASSIGNMENTS\tCOMPLETED\tPROGRESS")
	for _, op := range ws.Operations {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d%%\n",
			op.OperationCode, op.Status, op.Total,
			op.ByStatus["completed"], op.CompletionPercentage)
	}
	tw.Flush()
}

func init() {
	worksheetStatusCmd.Flags().StringVar(&statusFromFile, "from-file", "",
		"roll up an exported assignment dump (JSON) instead of the store")
	worksheetCmd.AddCommand(worksheetStatusCmd)
}
