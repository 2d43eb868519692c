package main

import (
	"github.com/spf13/cobra"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var (
	assignWorksheetID int
	assignOperation   string
	assignProperty    string
	assignPolygon     int
	assignOperator    string
	assignToken       string
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Drive operation assignments through their lifecycle",
}

func assignmentKey() model.AssignmentKey {
	return model.AssignmentKey{
		WorksheetID:     assignWorksheetID,
		OperationCode:   assignOperation,
		RuralPropertyID: assignProperty,
		PolygonID:       assignPolygon,
		Operator:        assignOperator,
	}
}

func init() {
	pf := assignmentCmd.PersistentFlags()
	pf.IntVar(&assignWorksheetID, "worksheet", 0, "worksheet id")
	pf.StringVar(&assignOperation, "operation", "", "operation code")
	pf.StringVar(&assignProperty, "property", "", "rural property id")
	pf.IntVar(&assignPolygon, "polygon", 0, "polygon id")
	pf.StringVar(&assignOperator, "operator", "", "field operator")
	pf.StringVar(&assignToken, "token", "", "capability token")
	rootCmd.AddCommand(assignmentCmd)
}
