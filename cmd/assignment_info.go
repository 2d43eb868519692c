package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/lifecycle"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

var (
	infoActivityID string
	infoNotes      string
	infoGPSTrack   string
	infoPhotos     []string
)

var assignmentInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Append notes, GPS track, or photos to an ended activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		act, err := lifecycle.NewMachine(st).AddActivityInfo(ctx, model.Token(assignToken),
			infoActivityID, infoNotes, infoGPSTrack, infoPhotos)
		if err != nil {
			return err
		}

		zap.L().Info("activity info appended",
			zap.String("activity", act.ID),
			zap.Int("photos", len(act.Photos)),
		)
		return nil
	},
}

func init() {
	f := assignmentInfoCmd.Flags()
	f.StringVar(&infoActivityID, "activity", "", "activity id (required)")
	f.StringVar(&infoNotes, "notes", "", "notes to append")
	f.StringVar(&infoGPSTrack, "gps-track", "", "GPS track to append")
	f.StringSliceVar(&infoPhotos, "photo", nil, "photo references to append (repeatable)")
	_ = assignmentInfoCmd.MarkFlagRequired("activity")
	assignmentCmd.AddCommand(assignmentInfoCmd)
}
