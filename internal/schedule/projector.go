// Package schedule derives calendar views from worksheet execution
// events: events grouped by the date portion of their start timestamp,
// optionally filtered by status first.
package schedule

import (
	"sort"
	"strings"
	"unicode"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
)

// FilterAll is the identity status filter.
const FilterAll = "all"

// DayGroup holds the events starting on one calendar date.
type DayGroup struct {
	Date   string                `json:"date"`
	Events []model.ScheduleEvent `json:"events"`
}

// DateKey returns the date portion of an event timestamp. Upstream
// timestamps vary only in the separator between date and time, so the
// key is everything before the first whitespace character.
func DateKey(ts string) string {
	ts = strings.TrimSpace(ts)
	if i := strings.IndexFunc(ts, unicode.IsSpace); i >= 0 {
		return ts[:i]
	}
	return ts
}

// Project filters events by status and groups them by start date,
// returning the groups in date order. An empty or "all" filter keeps
// every event.
func Project(events []model.ScheduleEvent, statusFilter string) []DayGroup {
	byDate := make(map[string][]model.ScheduleEvent)
	for _, ev := range events {
		if !matches(ev, statusFilter) {
			continue
		}
		key := DateKey(ev.StartDate)
		byDate[key] = append(byDate[key], ev)
	}

	groups := make([]DayGroup, 0, len(byDate))
	for date, evs := range byDate {
		groups = append(groups, DayGroup{Date: date, Events: evs})
	}
	sort.Slice(groups, func(i, j int) bool {
		return dateLess(groups[i].Date, groups[j].Date)
	})
	return groups
}

// EventFromWorksheet projects a worksheet into its calendar event. The
// area-of-interest code doubles as the display location.
func EventFromWorksheet(ws model.Worksheet, status model.Status) model.ScheduleEvent {
	return model.ScheduleEvent{
		WorksheetID: ws.ID,
		StartDate:   ws.Metadata.StartDate,
		EndDate:     ws.Metadata.FinishDate,
		Location:    ws.Metadata.AIGP,
		Status:      status,
	}
}

func matches(ev model.ScheduleEvent, statusFilter string) bool {
	if statusFilter == "" || statusFilter == FilterAll {
		return true
	}
	return ev.Status == model.Status(statusFilter)
}

// dateLess orders date keys chronologically when both parse, falling
// back to a string compare for keys in unknown forms.
func dateLess(a, b string) bool {
	ta, okA := model.ParseTimestamp(a)
	tb, okB := model.ParseTimestamp(b)
	if okA && okB {
		return ta.Before(tb)
	}
	return a < b
}
