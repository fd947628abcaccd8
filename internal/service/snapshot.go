package service

import (
	"sort"
	"time"

	"github.com/noah-isme/gradestore/internal/models"
)

// Snapshot is the cached view of the store held by DataService. It is also the payload
// written to the snapshot cache.
type Snapshot struct {
	Assignments []*models.Assignment `json:"assignments"`
	Students    []*models.Student    `json:"students"`
	TAs         []*models.TA         `json:"tas"`
	Groups      []*models.Group      `json:"groups"`
	LoadedAt    time.Time            `json:"loaded_at"`
}

type memberKey struct {
	assignmentID int64
	studentID    int64
}

// arena indexes a snapshot by identity. Parents reference children through id lists so a
// removal never leaves a dangling pointer behind.
type arena struct {
	snap *Snapshot

	assignments    map[int64]*models.Assignment
	events         map[int64]*models.GradableEvent
	parts          map[int64]*models.Part
	partAssignment map[int64]int64
	students       map[int64]*models.Student
	studentLogins  map[string]int64
	tas            map[int64]*models.TA
	taLogins       map[string]int64
	groups         map[int64]*models.Group
	assignGroups   map[int64][]int64
	members        map[memberKey]int64
}

func newArena(snap *Snapshot) *arena {
	if snap == nil {
		snap = &Snapshot{}
	}
	a := &arena{snap: snap}
	a.reindex()
	return a
}

func (a *arena) reindex() {
	s := a.snap
	sort.SliceStable(s.Assignments, func(i, j int) bool {
		if s.Assignments[i].Order != s.Assignments[j].Order {
			return s.Assignments[i].Order < s.Assignments[j].Order
		}
		return s.Assignments[i].ID < s.Assignments[j].ID
	})
	sort.SliceStable(s.Students, func(i, j int) bool { return s.Students[i].Login < s.Students[j].Login })
	sort.SliceStable(s.TAs, func(i, j int) bool { return s.TAs[i].Login < s.TAs[j].Login })
	sort.SliceStable(s.Groups, func(i, j int) bool {
		if s.Groups[i].AssignmentID != s.Groups[j].AssignmentID {
			return s.Groups[i].AssignmentID < s.Groups[j].AssignmentID
		}
		return s.Groups[i].Name < s.Groups[j].Name
	})

	a.assignments = make(map[int64]*models.Assignment, len(s.Assignments))
	a.events = make(map[int64]*models.GradableEvent)
	a.parts = make(map[int64]*models.Part)
	a.partAssignment = make(map[int64]int64)
	for _, asgn := range s.Assignments {
		a.assignments[asgn.ID] = asgn
		for _, ev := range asgn.GradableEvents {
			a.events[ev.ID] = ev
			for _, p := range ev.Parts {
				a.parts[p.ID] = p
				a.partAssignment[p.ID] = asgn.ID
			}
		}
	}

	a.students = make(map[int64]*models.Student, len(s.Students))
	a.studentLogins = make(map[string]int64, len(s.Students))
	for _, st := range s.Students {
		a.students[st.ID] = st
		a.studentLogins[st.Login] = st.ID
	}

	a.tas = make(map[int64]*models.TA, len(s.TAs))
	a.taLogins = make(map[string]int64, len(s.TAs))
	for _, ta := range s.TAs {
		a.tas[ta.ID] = ta
		a.taLogins[ta.Login] = ta.ID
	}

	a.groups = make(map[int64]*models.Group, len(s.Groups))
	a.assignGroups = make(map[int64][]int64)
	a.members = make(map[memberKey]int64)
	for _, g := range s.Groups {
		a.groups[g.ID] = g
		a.assignGroups[g.AssignmentID] = append(a.assignGroups[g.AssignmentID], g.ID)
		for _, id := range g.MemberIDs {
			a.members[memberKey{g.AssignmentID, id}] = g.ID
		}
	}
}

// replaceAssignments swaps in the stored assignment trees.
func (a *arena) replaceAssignments(items []*models.Assignment) {
	a.snap.Assignments = items
	a.reindex()
}

func (a *arena) upsertStudents(items []*models.Student) {
	for _, item := range items {
		cp := *item
		a.snap.Students = upsertByID(a.snap.Students, &cp, func(x *models.Student) int64 { return x.ID })
	}
	a.reindex()
}

func (a *arena) upsertTAs(items []*models.TA) {
	for _, item := range items {
		cp := *item
		a.snap.TAs = upsertByID(a.snap.TAs, &cp, func(x *models.TA) int64 { return x.ID })
	}
	a.reindex()
}

func (a *arena) upsertGroups(items []*models.Group) {
	for _, item := range items {
		cp := item.Clone()
		cp.NormalizeMembers()
		a.snap.Groups = upsertByID(a.snap.Groups, cp, func(x *models.Group) int64 { return x.ID })
	}
	a.reindex()
}

// dropAssignments removes assignments and the groups that belong to them.
func (a *arena) dropAssignments(ids map[int64]bool) {
	a.snap.Assignments = filter(a.snap.Assignments, func(x *models.Assignment) bool { return !ids[x.ID] })
	a.snap.Groups = filter(a.snap.Groups, func(g *models.Group) bool { return !ids[g.AssignmentID] })
	a.reindex()
}

// dropStudents removes students, their memberships and any group left without members.
func (a *arena) dropStudents(ids map[int64]bool) {
	a.snap.Students = filter(a.snap.Students, func(x *models.Student) bool { return !ids[x.ID] })
	for _, g := range a.snap.Groups {
		g.MemberIDs = filter(g.MemberIDs, func(id int64) bool { return !ids[id] })
	}
	a.snap.Groups = filter(a.snap.Groups, func(g *models.Group) bool { return len(g.MemberIDs) > 0 })
	a.reindex()
}

func (a *arena) dropTAs(ids map[int64]bool) {
	a.snap.TAs = filter(a.snap.TAs, func(x *models.TA) bool { return !ids[x.ID] })
	a.reindex()
}

func (a *arena) dropGroups(ids map[int64]bool) {
	a.snap.Groups = filter(a.snap.Groups, func(g *models.Group) bool { return !ids[g.ID] })
	a.reindex()
}

func upsertByID[T any](items []*T, item *T, id func(*T) int64) []*T {
	for i, existing := range items {
		if id(existing) == id(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
