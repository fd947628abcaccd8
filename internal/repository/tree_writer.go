package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

// The tree writers insert entities without identity and update the rest, recursing into
// the children currently attached in memory. Parent ids are passed down explicitly
// because in-memory identities are only written back by commit hooks. Stored children
// that are no longer attached in memory are left alone; removal is always explicit.

func putAssignmentTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, a *models.Assignment) error {
	id := a.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO assignments (name, ord, has_groups) VALUES (?, ?, ?)`,
			a.Name, a.Order, a.HasGroups)
		if err != nil {
			return fmt.Errorf("insert assignment %q: %w", a.Name, err)
		}
		id = newID
		h.add(func() { a.ID = newID })
	} else if err := updateOne(ctx, tx, "assignment", id,
		`UPDATE assignments SET name = ?, ord = ?, has_groups = ? WHERE id = ?`,
		a.Name, a.Order, a.HasGroups, id); err != nil {
		return fmt.Errorf("update assignment %d: %w", id, err)
	}

	for _, ev := range unique(a.GradableEvents, eventID) {
		if err := putEventTx(ctx, tx, h, id, ev); err != nil {
			return err
		}
	}
	return nil
}

func putEventTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, assignmentID int64, ev *models.GradableEvent) error {
	d := ev.Deadline
	args := []interface{}{
		assignmentID, ev.Name, ev.Order, ev.Directory, deadlineType(d.Type),
		nullTime(d.EarlyDate), nullTime(d.OnTimeDate), nullTime(d.LateDate),
		nullFloat(d.EarlyPoints), nullFloat(d.LatePoints), nullDuration(d.LatePeriod),
	}

	id := ev.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO gradable_events
            (assignment_id, name, ord, directory, deadline_type, early_date, on_time_date, late_date, early_points, late_points, late_period)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return fmt.Errorf("insert gradable event %q: %w", ev.Name, err)
		}
		id = newID
		h.add(func() { ev.ID = newID })
	} else if err := updateOne(ctx, tx, "gradable event", id, `UPDATE gradable_events SET
            assignment_id = ?, name = ?, ord = ?, directory = ?, deadline_type = ?, early_date = ?, on_time_date = ?,
            late_date = ?, early_points = ?, late_points = ?, late_period = ?
            WHERE id = ?`, append(args, id)...); err != nil {
		return fmt.Errorf("update gradable event %d: %w", id, err)
	}
	h.add(func() { ev.AssignmentID = assignmentID })

	for _, p := range unique(ev.Parts, partID) {
		if err := putPartTx(ctx, tx, h, id, p); err != nil {
			return err
		}
	}
	return nil
}

func putPartTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, eventID int64, p *models.Part) error {
	id := p.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO parts (gradable_event_id, name, ord, quick_name, out_of) VALUES (?, ?, ?, ?, ?)`,
			eventID, p.Name, p.Order, nullString(p.QuickName), p.OutOf)
		if err != nil {
			return fmt.Errorf("insert part %q: %w", p.Name, err)
		}
		id = newID
		h.add(func() { p.ID = newID })
	} else if err := updateOne(ctx, tx, "part", id,
		`UPDATE parts SET gradable_event_id = ?, name = ?, ord = ?, quick_name = ?, out_of = ? WHERE id = ?`,
		eventID, p.Name, p.Order, nullString(p.QuickName), p.OutOf, id); err != nil {
		return fmt.Errorf("update part %d: %w", id, err)
	}
	h.add(func() { p.GradableEventID = eventID })

	for _, a := range unique(p.Actions, actionID) {
		if err := putActionTx(ctx, tx, h, id, a); err != nil {
			return err
		}
	}
	for _, f := range unique(p.InclusionFilters, filterID) {
		if err := putFilterTx(ctx, tx, h, id, f); err != nil {
			return err
		}
	}
	if p.GradingSheet != nil {
		if err := putSheetTx(ctx, tx, h, id, p.GradingSheet); err != nil {
			return err
		}
	}
	return nil
}

func putActionTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, partID int64, a *models.Action) error {
	id := a.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO actions (part_id, name, icon, task, ord) VALUES (?, ?, ?, ?, ?)`,
			partID, a.Name, a.Icon, a.Task, a.Order)
		if err != nil {
			return fmt.Errorf("insert action %q: %w", a.Name, err)
		}
		id = newID
		h.add(func() { a.ID = newID })
	} else if err := updateOne(ctx, tx, "action", id,
		`UPDATE actions SET part_id = ?, name = ?, icon = ?, task = ?, ord = ? WHERE id = ?`,
		partID, a.Name, a.Icon, a.Task, a.Order, id); err != nil {
		return fmt.Errorf("update action %d: %w", id, err)
	}
	h.add(func() { a.PartID = partID })

	for _, prop := range unique(a.Properties, propertyID) {
		if err := putPropertyTx(ctx, tx, h, id, prop); err != nil {
			return err
		}
	}
	return nil
}

func putPropertyTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, actionID int64, prop *models.ActionProperty) error {
	if prop.ID == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO action_properties (action_id, prop_key, prop_value) VALUES (?, ?, ?)`,
			actionID, prop.Key, prop.Value)
		if err != nil {
			return fmt.Errorf("insert action property %q: %w", prop.Key, err)
		}
		h.add(func() { prop.ID = newID })
	} else if err := updateOne(ctx, tx, "action property", prop.ID,
		`UPDATE action_properties SET action_id = ?, prop_key = ?, prop_value = ? WHERE id = ?`,
		actionID, prop.Key, prop.Value, prop.ID); err != nil {
		return fmt.Errorf("update action property %d: %w", prop.ID, err)
	}
	h.add(func() { prop.ActionID = actionID })
	return nil
}

func putFilterTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, partID int64, f *models.InclusionFilter) error {
	if f.ID == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO inclusion_filters (part_id, filter_type, path) VALUES (?, ?, ?)`,
			partID, string(f.Type), f.Path)
		if err != nil {
			return fmt.Errorf("insert inclusion filter %q: %w", f.Path, err)
		}
		h.add(func() { f.ID = newID })
	} else if err := updateOne(ctx, tx, "inclusion filter", f.ID,
		`UPDATE inclusion_filters SET part_id = ?, filter_type = ?, path = ? WHERE id = ?`,
		partID, string(f.Type), f.Path, f.ID); err != nil {
		return fmt.Errorf("update inclusion filter %d: %w", f.ID, err)
	}
	h.add(func() { f.PartID = partID })
	return nil
}

func putSheetTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, partID int64, s *models.GradingSheet) error {
	id := s.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO grading_sheets (part_id) VALUES (?)`, partID)
		if err != nil {
			return fmt.Errorf("insert grading sheet for part %d: %w", partID, err)
		}
		id = newID
		h.add(func() { s.ID = newID })
	} else if err := updateOne(ctx, tx, "grading sheet", id,
		`UPDATE grading_sheets SET part_id = ? WHERE id = ?`, partID, id); err != nil {
		return fmt.Errorf("update grading sheet %d: %w", id, err)
	}
	h.add(func() { s.PartID = partID })

	for _, sec := range unique(s.Sections, sectionID) {
		if err := putSectionTx(ctx, tx, h, id, sec); err != nil {
			return err
		}
	}
	return nil
}

func putSectionTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, sheetID int64, sec *models.GradingSheetSection) error {
	id := sec.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO grading_sheet_sections (sheet_id, name, ord, out_of) VALUES (?, ?, ?, ?)`,
			sheetID, sec.Name, sec.Order, nullFloat(sec.OutOf))
		if err != nil {
			return fmt.Errorf("insert grading sheet section %q: %w", sec.Name, err)
		}
		id = newID
		h.add(func() { sec.ID = newID })
	} else if err := updateOne(ctx, tx, "grading sheet section", id,
		`UPDATE grading_sheet_sections SET sheet_id = ?, name = ?, ord = ?, out_of = ? WHERE id = ?`,
		sheetID, sec.Name, sec.Order, nullFloat(sec.OutOf), id); err != nil {
		return fmt.Errorf("update grading sheet section %d: %w", id, err)
	}
	h.add(func() { sec.SheetID = sheetID })

	for _, sub := range unique(sec.Subsections, subsectionID) {
		if err := putSubsectionTx(ctx, tx, h, id, sub); err != nil {
			return err
		}
	}
	return nil
}

func putSubsectionTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, sectionID int64, sub *models.GradingSheetSubsection) error {
	id := sub.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO grading_sheet_subsections (section_id, text, ord, out_of) VALUES (?, ?, ?, ?)`,
			sectionID, sub.Text, sub.Order, nullFloat(sub.OutOf))
		if err != nil {
			return fmt.Errorf("insert grading sheet subsection: %w", err)
		}
		id = newID
		h.add(func() { sub.ID = newID })
	} else if err := updateOne(ctx, tx, "grading sheet subsection", id,
		`UPDATE grading_sheet_subsections SET section_id = ?, text = ?, ord = ?, out_of = ? WHERE id = ?`,
		sectionID, sub.Text, sub.Order, nullFloat(sub.OutOf), id); err != nil {
		return fmt.Errorf("update grading sheet subsection %d: %w", id, err)
	}
	h.add(func() { sub.SectionID = sectionID })

	for _, d := range unique(sub.Details, detailID) {
		if err := putDetailTx(ctx, tx, h, id, d); err != nil {
			return err
		}
	}
	return nil
}

func putDetailTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, subsectionID int64, d *models.GradingSheetDetail) error {
	if d.ID == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO grading_sheet_details (subsection_id, text, ord) VALUES (?, ?, ?)`,
			subsectionID, d.Text, d.Order)
		if err != nil {
			return fmt.Errorf("insert grading sheet detail: %w", err)
		}
		h.add(func() { d.ID = newID })
	} else if err := updateOne(ctx, tx, "grading sheet detail", d.ID,
		`UPDATE grading_sheet_details SET subsection_id = ?, text = ?, ord = ? WHERE id = ?`,
		subsectionID, d.Text, d.Order, d.ID); err != nil {
		return fmt.Errorf("update grading sheet detail %d: %w", d.ID, err)
	}
	h.add(func() { d.SubsectionID = subsectionID })
	return nil
}

// Identity clearing after a cascading delete.

func clearAssignment(a *models.Assignment) {
	a.ID = 0
	for _, ev := range a.GradableEvents {
		clearEvent(ev)
	}
}

func clearEvent(ev *models.GradableEvent) {
	ev.ID, ev.AssignmentID = 0, 0
	for _, p := range ev.Parts {
		clearPart(p)
	}
}

func clearPart(p *models.Part) {
	p.ID, p.GradableEventID = 0, 0
	for _, a := range p.Actions {
		clearAction(a)
	}
	for _, f := range p.InclusionFilters {
		f.ID, f.PartID = 0, 0
	}
	if p.GradingSheet != nil {
		clearSheet(p.GradingSheet)
	}
}

func clearAction(a *models.Action) {
	a.ID, a.PartID = 0, 0
	for _, prop := range a.Properties {
		prop.ID, prop.ActionID = 0, 0
	}
}

func clearSheet(s *models.GradingSheet) {
	s.ID, s.PartID = 0, 0
	for _, sec := range s.Sections {
		sec.ID, sec.SheetID = 0, 0
		for _, sub := range sec.Subsections {
			sub.ID, sub.SectionID = 0, 0
			for _, d := range sub.Details {
				d.ID, d.SubsectionID = 0, 0
			}
		}
	}
}

func assignmentID(a *models.Assignment) int64 { return a.ID }
func eventID(ev *models.GradableEvent) int64 { return ev.ID }
func partID(p *models.Part) int64 { return p.ID }
func actionID(a *models.Action) int64 { return a.ID }
func propertyID(p *models.ActionProperty) int64 { return p.ID }
func filterID(f *models.InclusionFilter) int64 { return f.ID }
func sheetID(s *models.GradingSheet) int64 { return s.ID }
func sectionID(s *models.GradingSheetSection) int64 { return s.ID }
func subsectionID(s *models.GradingSheetSubsection) int64 { return s.ID }
func detailID(d *models.GradingSheetDetail) int64 { return d.ID }
func studentID(s *models.Student) int64 { return s.ID }
func taID(t *models.TA) int64 { return t.ID }
func groupID(g *models.Group) int64 { return g.ID }

func deadlineType(t models.DeadlineType) string {
	if t == "" {
		return string(models.DeadlineNone)
	}
	return string(t)
}

// Column encodings shared by writers and loaders. Times are stored as RFC 3339 text in
// UTC so both drivers round-trip them identically.

func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeText(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeText(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTimeText(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullDuration(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}

func durationPtr(ni sql.NullInt64) *time.Duration {
	if !ni.Valid {
		return nil
	}
	v := time.Duration(ni.Int64)
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != models.Unassigned}
}
