package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var (
	endActivityID string
	endDate       string
	endNotes      string
	endGPSTrack   string
	endPhotos     []string
	endFinal      bool
)

var assignmentEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End an open activity, optionally completing the assignment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := lifecycle.NewMachine(st).EndActivity(ctx, model.Token(assignToken), assignmentKey(),
			endActivityID, endDate, endNotes, endGPSTrack, endPhotos, endFinal)
		if err != nil {
			return err
		}

		zap.L().Info("activity ended",
			zap.Int("worksheet", a.WorksheetID),
			zap.String("operation", a.OperationCode),
			zap.String("activity", endActivityID),
			zap.Bool("final", endFinal),
			zap.String("status", string(a.Status)),
		)
		return nil
	},
}

func init() {
	f := assignmentEndCmd.Flags()
	f.StringVar(&endActivityID, "activity", "", "activity id (required)")
	f.StringVar(&endDate, "end", "", "activity end timestamp (default now)")
	f.StringVar(&endNotes, "notes", "", "notes to append")
	f.StringVar(&endGPSTrack, "gps-track", "", "GPS track to append")
	f.StringSliceVar(&endPhotos, "photo", nil, "photo references to append (repeatable)")
	f.BoolVar(&endFinal, "final", false, "complete the assignment")
	_ = assignmentEndCmd.MarkFlagRequired("activity")
	assignmentCmd.AddCommand(assignmentEndCmd)
}
