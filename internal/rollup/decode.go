package rollup

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/ident"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// DecodeAssignments decodes a raw JSON array of assignment objects from
// an external source. Input is heterogeneous in practice: the decode
// tolerates partially-populated objects rather than failing the whole
// aggregation: an absent or non-list activities field means zero
// activities. Numbers are decoded as json.Number so activity ids keep
// exact precision.
func DecodeAssignments(raw []byte) ([]model.Assignment, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, eris.Wrap(err, "rollup: decode assignments")
	}

	out := make([]model.Assignment, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			zap.L().Warn("rollup: skipping non-object assignment entry", zap.Int("index", i))
			continue
		}
		out = append(out, DecodeAssignment(fields))
	}
	return out, nil
}

// DecodeAssignment builds an Assignment from a raw decoded object,
// defaulting anything malformed instead of failing.
func DecodeAssignment(fields map[string]any) model.Assignment {
	a := model.Assignment{
		AssignmentKey: model.AssignmentKey{
			WorksheetID:     intField(fields, "worksheet_id"),
			OperationCode:   strField(fields, "operation_code"),
			RuralPropertyID: strField(fields, "rural_property_id"),
			PolygonID:       intField(fields, "polygon_id"),
			Operator:        strField(fields, "operator"),
		},
		Status:    model.StatusUnassigned,
		StartDate: strField(fields, "start_date"),
		EndDate:   strField(fields, "end_date"),
	}
	if s := strField(fields, "status"); s != "" {
		a.Status = model.Status(s)
	}

	raw, present := fields["activities"]
	if !present {
		return a
	}
	list, ok := raw.([]any)
	if !ok {
		zap.L().Warn("rollup: activities field is not a list, treating as empty",
			zap.String("operation", a.OperationCode),
		)
		return a
	}
	for i, item := range list {
		af, ok := item.(map[string]any)
		if !ok {
			zap.L().Warn("rollup: skipping non-object activity entry", zap.Int("index", i))
			continue
		}
		a.Activities = append(a.Activities, DecodeActivity(af))
	}
	return a
}

// DecodeActivity builds an Activity from a raw decoded object. The end
// timestamp is resolved through the full alias set and stored under the
// canonical field.
func DecodeActivity(fields map[string]any) model.Activity {
	act := model.Activity{
		StartDate: firstString(fields, "start_date", "startDate", "ACTIVITY_START", "activity_start", "start"),
		Notes:     strField(fields, "notes"),
		GPSTrack:  firstString(fields, "gps_track", "gps"),
	}

	if ts, ok := model.EndTimestamp(fields); ok {
		act.EndDate = ts
	}

	switch id := fields["id"].(type) {
	case string:
		act.ID = id
	case json.Number:
		act.ID = id.String()
	}
	if act.ID != "" {
		if _, err := ident.Decode(act.ID); err != nil {
			zap.L().Warn("rollup: activity id failed validation", zap.String("id", act.ID), zap.Error(err))
		}
	}

	if photos, ok := fields["photos"].([]any); ok {
		for _, p := range photos {
			if url, ok := p.(string); ok {
				act.Photos = append(act.Photos, url)
			}
		}
	}
	if final, ok := fields["final"].(bool); ok {
		act.Final = final
	}
	return act
}

func strField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case float64:
		return int(v)
	}
	return 0
}
