package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var worksheetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported worksheets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sheets, err := st.ListWorksheets(ctx)
		if err != nil {
			return err
		}
		if len(sheets) == 0 {
			zap.L().Info("no worksheets found")
			return nil
		}

		formatWorksheets(os.Stdout, sheets)
		return nil
	},
}

func formatWorksheets(w io.Writer, sheets []model.Worksheet) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAIGP\tSTART\tFINISH\tOPERATIONS\tFEATURES")
	for _, ws := range sheets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\n",
			ws.ID, ws.Metadata.AIGP, ws.Metadata.StartDate, ws.Metadata.FinishDate,
			len(ws.Operations), len(ws.Features))
	}
	tw.Flush()
}

func init() { worksheetCmd.AddCommand(worksheetListCmd) }
