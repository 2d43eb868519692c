package main

import (
	"os"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/importer"
)

var (
	importCharset     string
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import worksheet payloads from JSON or YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		charset := importCharset
		if charset == "" {
			charset = cfg.Import.Charset
		}
		validator := importer.NewValidator()
		if cfg.Import.MaxOperations > 0 {
			validator.MaxOperations = cfg.Import.MaxOperations
		}

		var imported atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importConcurrency)

		for _, path := range args {
			path := path
			g.Go(func() error {
				raw, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}

				payload, err := importer.DecodeFile(path, raw, charset)
				if err != nil {
					return err
				}
				if err := validator.Validate(payload); err != nil {
					return eris.Wrapf(err, "validate %s", path)
				}

				ws := payload.Worksheet()
				if err := st.CreateWorksheet(gctx, ws); err != nil {
					return eris.Wrapf(err, "import %s", path)
				}

				imported.Add(1)
				zap.L().Info("worksheet imported",
					zap.String("file", path),
					zap.Int("worksheet", ws.ID),
					zap.Int("operations", len(ws.Operations)),
					zap.Int("features", len(ws.Features)),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("import complete", zap.Int64("worksheets", imported.Load()))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCharset, "charset", "", "source charset (default from config)")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "concurrent file imports")
	rootCmd.AddCommand(importCmd)
}
