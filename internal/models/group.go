package models

import "sort"

// Group is a set of students handing in together for one assignment.
// A student belongs to at most one group per assignment.
type Group struct {
	ID           int64   `json:"id,omitempty"`
	AssignmentID int64   `json:"assignment_id"`
	Name         string  `json:"name" validate:"required,max=128"`
	MemberIDs    []int64 `json:"member_ids" validate:"required,min=1"`
}

// HasMember reports whether the student is in the group.
func (g *Group) HasMember(studentID int64) bool {
	for _, id := range g.MemberIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own member slice.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	cp := *g
	cp.MemberIDs = append([]int64(nil), g.MemberIDs...)
	return &cp
}

// NormalizeMembers sorts and de-duplicates member ids in place.
func (g *Group) NormalizeMembers() {
	if len(g.MemberIDs) == 0 {
		return
	}
	ids := append([]int64(nil), g.MemberIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	g.MemberIDs = out
}

// Distribution maps part id -> TA id -> group ids graded by that TA.
type Distribution map[int64]map[int64][]int64

// BlacklistEntry pairs a TA with a student the TA must not grade.
type BlacklistEntry struct {
	TAID      int64 `json:"ta_id"`
	StudentID int64 `json:"student_id"`
}
