// Package rollup computes per-assignment and per-operation/worksheet
// status summaries: counts by state and completion percentages, shaped
// for direct rendering.
package rollup

import (
	"math"
	"sort"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// Summary is the rollup over a set of child records.
type Summary struct {
	Total                int                  `json:"total_assignments"`
	ByStatus             map[model.Status]int `json:"by_status"`
	CompletionPercentage int                  `json:"completion_percentage"`
}

// OperationSummary is the rollup for one operation, with the
// per-assignment detail list (nested activities included) for
// drill-down.
type OperationSummary struct {
	OperationCode string             `json:"operation_code"`
	Status        model.Status       `json:"status"`
	Summary
	Assignments []model.Assignment `json:"assignments"`
}

// WorksheetSummary is the rollup one level up: operation counts by
// derived status across a worksheet.
type WorksheetSummary struct {
	WorksheetID int `json:"worksheet_id"`
	Summary
	Operations []OperationSummary `json:"operations"`
}

// Summarize computes total, counts by status, and completion percentage
// for a set of assignments. An empty set yields zero percent, never a
// division by zero.
func Summarize(assignments []model.Assignment) Summary {
	s := Summary{ByStatus: make(map[model.Status]int)}
	for _, a := range assignments {
		s.Total++
		s.ByStatus[a.Status]++
	}
	if s.Total > 0 {
		s.CompletionPercentage = int(math.Round(100 * float64(s.ByStatus[model.StatusCompleted]) / float64(s.Total)))
	}
	return s
}

// SummarizeOperation rolls up the assignments of a single operation.
func SummarizeOperation(code string, assignments []model.Assignment) OperationSummary {
	return OperationSummary{
		OperationCode: code,
		Status:        DeriveOperationStatus(assignments),
		Summary:       Summarize(assignments),
		Assignments:   assignments,
	}
}

// SummarizeWorksheet groups a worksheet's assignments by operation code
// and rolls operation statuses up into a worksheet-level summary.
func SummarizeWorksheet(worksheetID int, assignments []model.Assignment) WorksheetSummary {
	byOp := make(map[string][]model.Assignment)
	for _, a := range assignments {
		byOp[a.OperationCode] = append(byOp[a.OperationCode], a)
	}

	codes := make([]string, 0, len(byOp))
	for code := range byOp {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	ws := WorksheetSummary{
		WorksheetID: worksheetID,
		Summary:     Summary{ByStatus: make(map[model.Status]int)},
	}
	for _, code := range codes {
		op := SummarizeOperation(code, byOp[code])
		ws.Operations = append(ws.Operations, op)
		ws.Total++
		ws.ByStatus[op.Status]++
	}
	if ws.Total > 0 {
		ws.CompletionPercentage = int(math.Round(100 * float64(ws.ByStatus[model.StatusCompleted]) / float64(ws.Total)))
	}
	return ws
}

// DeriveOperationStatus derives an operation's status from its
// assignments. Operations never carry a stored status.
func DeriveOperationStatus(assignments []model.Assignment) model.Status {
	if len(assignments) == 0 {
		return model.StatusPending
	}
	completed := 0
	anyProgress := false
	anyAssigned := false
	for _, a := range assignments {
		switch a.Status {
		case model.StatusCompleted:
			completed++
		case model.StatusInProgress:
			anyProgress = true
		case model.StatusAssigned:
			anyAssigned = true
		}
	}
	switch {
	case completed == len(assignments):
		return model.StatusCompleted
	case anyProgress || completed > 0:
		return model.StatusInProgress
	case anyAssigned:
		return model.StatusAssigned
	default:
		return model.StatusUnassigned
	}
}
