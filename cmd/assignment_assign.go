package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var assignmentAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign an operator to an unassigned operation/parcel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// The stored row is operator-less until someone takes it.
		key := assignmentKey()
		key.Operator = ""

		a, err := lifecycle.NewMachine(st).Assign(ctx, model.Token(assignToken), key, assignOperator)
		if err != nil {
			return err
		}

		zap.L().Info("assignment created",
			zap.Int("worksheet", a.WorksheetID),
			zap.String("operation", a.OperationCode),
			zap.String("operator", a.Operator),
			zap.String("status", string(a.Status)),
		)
		return nil
	},
}

func init() { assignmentCmd.AddCommand(assignmentAssignCmd) }
