package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var startDate string

var assignmentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a new activity on an assignment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := lifecycle.NewMachine(st).StartActivity(ctx, model.Token(assignToken), assignmentKey(), startDate)
		if err != nil {
			return err
		}

		open := a.OpenActivity()
		activityID := ""
		if open != nil {
			activityID = open.ID
		}
		zap.L().Info("activity started",
			zap.Int("worksheet", a.WorksheetID),
			zap.String("operation", a.OperationCode),
			zap.String("activity", activityID),
			zap.String("status", string(a.Status)),
		)
		return nil
	},
}

func init() {
	assignmentStartCmd.Flags().StringVar(&startDate, "start", "", "activity start timestamp (default now)")
	assignmentCmd.AddCommand(assignmentStartCmd)
}
