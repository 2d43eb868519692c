package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var worksheetRemoveCmd = &cobra.Command{
	Use:   "remove <worksheet-id>",
	Short: "Remove a worksheet and all of its assignments and activities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("worksheet id must be an integer: %w", err)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteWorksheet(ctx, id); err != nil {
			return err
		}

		zap.L().Info("worksheet removed", zap.Int("worksheet", id))
		return nil
	},
}

func init() { worksheetCmd.AddCommand(worksheetRemoveCmd) }
