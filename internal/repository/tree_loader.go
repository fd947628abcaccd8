package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

type assignmentRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Ord       int    `db:"ord"`
	HasGroups bool   `db:"has_groups"`
}

type eventRow struct {
	ID           int64           `db:"id"`
	AssignmentID int64           `db:"assignment_id"`
	Name         string          `db:"name"`
	Ord          int             `db:"ord"`
	Directory    string          `db:"directory"`
	DeadlineType string          `db:"deadline_type"`
	EarlyDate    sql.NullString  `db:"early_date"`
	OnTimeDate   sql.NullString  `db:"on_time_date"`
	LateDate     sql.NullString  `db:"late_date"`
	EarlyPoints  sql.NullFloat64 `db:"early_points"`
	LatePoints   sql.NullFloat64 `db:"late_points"`
	LatePeriod   sql.NullInt64   `db:"late_period"`
}

type partRow struct {
	ID              int64          `db:"id"`
	GradableEventID int64          `db:"gradable_event_id"`
	Name            string         `db:"name"`
	Ord             int            `db:"ord"`
	QuickName       sql.NullString `db:"quick_name"`
	OutOf           float64        `db:"out_of"`
}

type actionRow struct {
	ID     int64  `db:"id"`
	PartID int64  `db:"part_id"`
	Name   string `db:"name"`
	Icon   string `db:"icon"`
	Task   string `db:"task"`
	Ord    int    `db:"ord"`
}

type propertyRow struct {
	ID       int64  `db:"id"`
	ActionID int64  `db:"action_id"`
	Key      string `db:"prop_key"`
	Value    string `db:"prop_value"`
}

type filterRow struct {
	ID     int64  `db:"id"`
	PartID int64  `db:"part_id"`
	Type   string `db:"filter_type"`
	Path   string `db:"path"`
}

type sheetRow struct {
	ID     int64 `db:"id"`
	PartID int64 `db:"part_id"`
}

type sectionRow struct {
	ID      int64           `db:"id"`
	SheetID int64           `db:"sheet_id"`
	Name    string          `db:"name"`
	Ord     int             `db:"ord"`
	OutOf   sql.NullFloat64 `db:"out_of"`
}

type subsectionRow struct {
	ID        int64           `db:"id"`
	SectionID int64           `db:"section_id"`
	Text      string          `db:"text"`
	Ord       int             `db:"ord"`
	OutOf     sql.NullFloat64 `db:"out_of"`
}

type detailRow struct {
	ID           int64  `db:"id"`
	SubsectionID int64  `db:"subsection_id"`
	Text         string `db:"text"`
	Ord          int    `db:"ord"`
}

// loadAssignmentTree reads every table of the assignment tree and assembles fresh
// entities. Children are ordered by rank then identity; empty child lists stay nil.
func loadAssignmentTree(ctx context.Context, q sqlx.QueryerContext) ([]*models.Assignment, error) {
	var (
		assignments []assignmentRow
		events      []eventRow
		parts       []partRow
		actions     []actionRow
		properties  []propertyRow
		filters     []filterRow
		sheets      []sheetRow
		sections    []sectionRow
		subsections []subsectionRow
		details     []detailRow
	)

	loads := []struct {
		dest  interface{}
		query string
	}{
		{&assignments, `SELECT id, name, ord, has_groups FROM assignments ORDER BY ord, id`},
		{&events, `SELECT id, assignment_id, name, ord, directory, deadline_type, early_date, on_time_date, late_date,
            early_points, late_points, late_period FROM gradable_events ORDER BY ord, id`},
		{&parts, `SELECT id, gradable_event_id, name, ord, quick_name, out_of FROM parts ORDER BY ord, id`},
		{&actions, `SELECT id, part_id, name, icon, task, ord FROM actions ORDER BY ord, id`},
		{&properties, `SELECT id, action_id, prop_key, prop_value FROM action_properties ORDER BY id`},
		{&filters, `SELECT id, part_id, filter_type, path FROM inclusion_filters ORDER BY id`},
		{&sheets, `SELECT id, part_id FROM grading_sheets ORDER BY id`},
		{&sections, `SELECT id, sheet_id, name, ord, out_of FROM grading_sheet_sections ORDER BY ord, id`},
		{&subsections, `SELECT id, section_id, text, ord, out_of FROM grading_sheet_subsections ORDER BY ord, id`},
		{&details, `SELECT id, subsection_id, text, ord FROM grading_sheet_details ORDER BY ord, id`},
	}
	for _, l := range loads {
		if err := sqlx.SelectContext(ctx, q, l.dest, l.query); err != nil {
			return nil, fmt.Errorf("load assignment tree: %w", err)
		}
	}

	// Assemble bottom-up so every parent sees its complete child list.
	detailsBySub := make(map[int64][]*models.GradingSheetDetail)
	for _, r := range details {
		detailsBySub[r.SubsectionID] = append(detailsBySub[r.SubsectionID], &models.GradingSheetDetail{
			ID: r.ID, SubsectionID: r.SubsectionID, Text: r.Text, Order: r.Ord,
		})
	}

	subsBySection := make(map[int64][]*models.GradingSheetSubsection)
	for _, r := range subsections {
		subsBySection[r.SectionID] = append(subsBySection[r.SectionID], &models.GradingSheetSubsection{
			ID: r.ID, SectionID: r.SectionID, Text: r.Text, Order: r.Ord, OutOf: floatPtr(r.OutOf),
			Details: detailsBySub[r.ID],
		})
	}

	sectionsBySheet := make(map[int64][]*models.GradingSheetSection)
	for _, r := range sections {
		sectionsBySheet[r.SheetID] = append(sectionsBySheet[r.SheetID], &models.GradingSheetSection{
			ID: r.ID, SheetID: r.SheetID, Name: r.Name, Order: r.Ord, OutOf: floatPtr(r.OutOf),
			Subsections: subsBySection[r.ID],
		})
	}

	sheetByPart := make(map[int64]*models.GradingSheet, len(sheets))
	for _, r := range sheets {
		sheetByPart[r.PartID] = &models.GradingSheet{ID: r.ID, PartID: r.PartID, Sections: sectionsBySheet[r.ID]}
	}

	propsByAction := make(map[int64][]*models.ActionProperty)
	for _, r := range properties {
		propsByAction[r.ActionID] = append(propsByAction[r.ActionID], &models.ActionProperty{
			ID: r.ID, ActionID: r.ActionID, Key: r.Key, Value: r.Value,
		})
	}

	actionsByPart := make(map[int64][]*models.Action)
	for _, r := range actions {
		actionsByPart[r.PartID] = append(actionsByPart[r.PartID], &models.Action{
			ID: r.ID, PartID: r.PartID, Name: r.Name, Icon: r.Icon, Task: r.Task, Order: r.Ord,
			Properties: propsByAction[r.ID],
		})
	}

	filtersByPart := make(map[int64][]*models.InclusionFilter)
	for _, r := range filters {
		filtersByPart[r.PartID] = append(filtersByPart[r.PartID], &models.InclusionFilter{
			ID: r.ID, PartID: r.PartID, Type: models.InclusionFilterType(r.Type), Path: r.Path,
		})
	}

	partsByEvent := make(map[int64][]*models.Part)
	for _, r := range parts {
		partsByEvent[r.GradableEventID] = append(partsByEvent[r.GradableEventID], &models.Part{
			ID:               r.ID,
			GradableEventID:  r.GradableEventID,
			Name:             r.Name,
			Order:            r.Ord,
			QuickName:        r.QuickName.String,
			OutOf:            r.OutOf,
			Actions:          actionsByPart[r.ID],
			InclusionFilters: filtersByPart[r.ID],
			GradingSheet:     sheetByPart[r.ID],
		})
	}

	eventsByAssignment := make(map[int64][]*models.GradableEvent)
	for _, r := range events {
		ev, err := r.toModel()
		if err != nil {
			return nil, err
		}
		ev.Parts = partsByEvent[r.ID]
		eventsByAssignment[r.AssignmentID] = append(eventsByAssignment[r.AssignmentID], ev)
	}

	var out []*models.Assignment
	for _, r := range assignments {
		out = append(out, &models.Assignment{
			ID:             r.ID,
			Name:           r.Name,
			Order:          r.Ord,
			HasGroups:      r.HasGroups,
			GradableEvents: eventsByAssignment[r.ID],
		})
	}
	return out, nil
}

func (r eventRow) toModel() (*models.GradableEvent, error) {
	early, err := parseNullTime(r.EarlyDate)
	if err != nil {
		return nil, err
	}
	onTime, err := parseNullTime(r.OnTimeDate)
	if err != nil {
		return nil, err
	}
	late, err := parseNullTime(r.LateDate)
	if err != nil {
		return nil, err
	}

	return &models.GradableEvent{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		Name:         r.Name,
		Order:        r.Ord,
		Directory:    r.Directory,
		Deadline: models.DeadlineInfo{
			Type:        models.DeadlineType(r.DeadlineType),
			EarlyDate:   early,
			OnTimeDate:  onTime,
			LateDate:    late,
			EarlyPoints: floatPtr(r.EarlyPoints),
			LatePoints:  floatPtr(r.LatePoints),
			LatePeriod:  durationPtr(r.LatePeriod),
		},
	}, nil
}
