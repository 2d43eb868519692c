package main

import "github.com/spf13/cobra"

var worksheetCmd = &cobra.Command{
	Use:   "worksheet",
	Short: "Inspect and manage imported worksheets",
}

func init() { rootCmd.AddCommand(worksheetCmd) }
