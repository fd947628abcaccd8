package models

import "time"

// Unassigned is the identity used when no row is referenced (no grader, no recording TA).
const Unassigned int64 = 0

// Assignment is the top-level grading unit. An ID of zero means the entity has not been
// persisted yet; the store assigns it on first insert.
type Assignment struct {
	ID             int64            `json:"id,omitempty"`
	Name           string           `json:"name"`
	Order          int              `json:"order"`
	HasGroups      bool             `json:"has_groups"`
	GradableEvents []*GradableEvent `json:"gradable_events,omitempty"`
}

// DeadlineType selects how a gradable event's deadline is interpreted.
type DeadlineType string

const (
	DeadlineNone     DeadlineType = "NONE"
	DeadlineFixed    DeadlineType = "FIXED"
	DeadlineVariable DeadlineType = "VARIABLE"
)

// DeadlineInfo describes the deadline policy of a gradable event. FIXED deadlines use the
// early/on-time/late dates with point deltas; VARIABLE deadlines use the on-time date, an
// optional late cut-off and a late period that each late point delta applies to.
type DeadlineInfo struct {
	Type        DeadlineType   `json:"type"`
	EarlyDate   *time.Time     `json:"early_date,omitempty"`
	OnTimeDate  *time.Time     `json:"on_time_date,omitempty"`
	LateDate    *time.Time     `json:"late_date,omitempty"`
	EarlyPoints *float64       `json:"early_points,omitempty"`
	LatePoints  *float64       `json:"late_points,omitempty"`
	LatePeriod  *time.Duration `json:"late_period,omitempty"`
}

// GradableEvent is a handin or checkpoint within an assignment.
type GradableEvent struct {
	ID           int64        `json:"id,omitempty"`
	AssignmentID int64        `json:"assignment_id,omitempty"`
	Name         string       `json:"name"`
	Order        int          `json:"order"`
	Directory    string       `json:"directory,omitempty"`
	Deadline     DeadlineInfo `json:"deadline"`
	Parts        []*Part      `json:"parts,omitempty"`
}

// Part is a scored subcomponent of a gradable event.
type Part struct {
	ID               int64              `json:"id,omitempty"`
	GradableEventID  int64              `json:"gradable_event_id,omitempty"`
	Name             string             `json:"name"`
	Order            int                `json:"order"`
	QuickName        string             `json:"quick_name,omitempty"`
	OutOf            float64            `json:"out_of"`
	Actions          []*Action          `json:"actions,omitempty"`
	InclusionFilters []*InclusionFilter `json:"inclusion_filters,omitempty"`
	GradingSheet     *GradingSheet      `json:"grading_sheet,omitempty"`
}

// Action is a runnable task descriptor attached to a part.
type Action struct {
	ID         int64             `json:"id,omitempty"`
	PartID     int64             `json:"part_id,omitempty"`
	Name       string            `json:"name"`
	Icon       string            `json:"icon,omitempty"`
	Task       string            `json:"task"`
	Order      int               `json:"order"`
	Properties []*ActionProperty `json:"properties,omitempty"`
}

// ActionProperty is a key/value configuration entry of an action.
type ActionProperty struct {
	ID       int64  `json:"id,omitempty"`
	ActionID int64  `json:"action_id,omitempty"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// InclusionFilterType names how an inclusion filter path is matched.
type InclusionFilterType string

const (
	FilterFile      InclusionFilterType = "FILE"
	FilterDirectory InclusionFilterType = "DIRECTORY"
	FilterGlob      InclusionFilterType = "GLOB"
)

// InclusionFilter selects which files of a handin belong to a part.
type InclusionFilter struct {
	ID     int64               `json:"id,omitempty"`
	PartID int64               `json:"part_id,omitempty"`
	Type   InclusionFilterType `json:"type"`
	Path   string              `json:"path"`
}

// GradingSheet is the rubric of a part.
type GradingSheet struct {
	ID       int64                  `json:"id,omitempty"`
	PartID   int64                  `json:"part_id,omitempty"`
	Sections []*GradingSheetSection `json:"sections,omitempty"`
}

// GradingSheetSection groups rubric subsections.
type GradingSheetSection struct {
	ID          int64                     `json:"id,omitempty"`
	SheetID     int64                     `json:"sheet_id,omitempty"`
	Name        string                    `json:"name"`
	Order       int                       `json:"order"`
	OutOf       *float64                  `json:"out_of,omitempty"`
	Subsections []*GradingSheetSubsection `json:"subsections,omitempty"`
}

// GradingSheetSubsection is a scored rubric line.
type GradingSheetSubsection struct {
	ID        int64                 `json:"id,omitempty"`
	SectionID int64                 `json:"section_id,omitempty"`
	Text      string                `json:"text"`
	Order     int                   `json:"order"`
	OutOf     *float64              `json:"out_of,omitempty"`
	Details   []*GradingSheetDetail `json:"details,omitempty"`
}

// GradingSheetDetail is free text under a subsection.
type GradingSheetDetail struct {
	ID           int64  `json:"id,omitempty"`
	SubsectionID int64  `json:"subsection_id,omitempty"`
	Text         string `json:"text"`
	Order        int    `json:"order"`
}

// Parts returns every part of the assignment in event order.
func (a *Assignment) Parts() []*Part {
	var parts []*Part
	for _, ev := range a.GradableEvents {
		parts = append(parts, ev.Parts...)
	}
	return parts
}

// TotalPoints sums the out-of values of every part of the event.
func (e *GradableEvent) TotalPoints() float64 {
	var total float64
	for _, p := range e.Parts {
		total += p.OutOf
	}
	return total
}

// TotalPoints sums the out-of values of every part of the assignment.
func (a *Assignment) TotalPoints() float64 {
	var total float64
	for _, ev := range a.GradableEvents {
		total += ev.TotalPoints()
	}
	return total
}

// Clone returns a deep copy of the assignment tree.
func (a *Assignment) Clone() *Assignment {
	if a == nil {
		return nil
	}
	cp := *a
	cp.GradableEvents = nil
	for _, ev := range a.GradableEvents {
		cp.GradableEvents = append(cp.GradableEvents, ev.Clone())
	}
	return &cp
}

// Clone returns a deep copy of the event and its parts.
func (e *GradableEvent) Clone() *GradableEvent {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Deadline = e.Deadline.clone()
	cp.Parts = nil
	for _, p := range e.Parts {
		cp.Parts = append(cp.Parts, p.Clone())
	}
	return &cp
}

func (d DeadlineInfo) clone() DeadlineInfo {
	cp := d
	cp.EarlyDate = cloneTime(d.EarlyDate)
	cp.OnTimeDate = cloneTime(d.OnTimeDate)
	cp.LateDate = cloneTime(d.LateDate)
	cp.EarlyPoints = cloneFloat(d.EarlyPoints)
	cp.LatePoints = cloneFloat(d.LatePoints)
	if d.LatePeriod != nil {
		v := *d.LatePeriod
		cp.LatePeriod = &v
	}
	return cp
}

// Clone returns a deep copy of the part and everything it owns.
func (p *Part) Clone() *Part {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Actions = nil
	for _, a := range p.Actions {
		cp.Actions = append(cp.Actions, a.Clone())
	}
	cp.InclusionFilters = nil
	for _, f := range p.InclusionFilters {
		fc := *f
		cp.InclusionFilters = append(cp.InclusionFilters, &fc)
	}
	cp.GradingSheet = p.GradingSheet.Clone()
	return &cp
}

// Clone returns a deep copy of the action and its properties.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Properties = nil
	for _, prop := range a.Properties {
		pc := *prop
		cp.Properties = append(cp.Properties, &pc)
	}
	return &cp
}

// Clone returns a deep copy of the grading sheet.
func (g *GradingSheet) Clone() *GradingSheet {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Sections = nil
	for _, sec := range g.Sections {
		sc := *sec
		sc.OutOf = cloneFloat(sec.OutOf)
		sc.Subsections = nil
		for _, sub := range sec.Subsections {
			subc := *sub
			subc.OutOf = cloneFloat(sub.OutOf)
			subc.Details = nil
			for _, d := range sub.Details {
				dc := *d
				subc.Details = append(subc.Details, &dc)
			}
			sc.Subsections = append(sc.Subsections, &subc)
		}
		cp.Sections = append(cp.Sections, &sc)
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
