package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/models"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
)

// Groups returns the groups of an assignment. Grouped assignments return exactly the stored
// groups. Other assignments return one group per enabled student: the stored group when one
// was created for that student, otherwise an unsaved singleton named after the login.
func (s *DataService) Groups(assignmentID int64) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asgn, ok := s.arena.assignments[assignmentID]
	if !ok {
		return nil, notFound("assignment", assignmentID)
	}

	out := make([]*models.Group, 0)
	if asgn.HasGroups {
		for _, id := range s.arena.assignGroups[assignmentID] {
			out = append(out, s.arena.groups[id].Clone())
		}
		return out, nil
	}

	seen := make(map[int64]bool)
	for _, st := range s.arena.snap.Students {
		if !st.Enabled {
			continue
		}
		if gid, ok := s.arena.members[memberKey{assignmentID, st.ID}]; ok {
			if !seen[gid] {
				seen[gid] = true
				out = append(out, s.arena.groups[gid].Clone())
			}
			continue
		}
		out = append(out, singletonGroup(assignmentID, st))
	}
	return out, nil
}

// Group returns the group of a student for an assignment. Students of assignments without
// explicit grouping always resolve to a group, disabled students included.
func (s *DataService) Group(assignmentID, studentID int64) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asgn, ok := s.arena.assignments[assignmentID]
	if !ok {
		return nil, notFound("assignment", assignmentID)
	}
	if gid, ok := s.arena.members[memberKey{assignmentID, studentID}]; ok {
		return s.arena.groups[gid].Clone(), nil
	}
	st, ok := s.arena.students[studentID]
	if !ok {
		return nil, notFound("student", studentID)
	}
	if asgn.HasGroups {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s has no group for assignment %d", st.Login, assignmentID))
	}
	return singletonGroup(assignmentID, st), nil
}

func singletonGroup(assignmentID int64, st *models.Student) *models.Group {
	return &models.Group{AssignmentID: assignmentID, Name: st.Login, MemberIDs: []int64{st.ID}}
}

// AddGroups validates and persists groups. A student already grouped for the assignment
// fails the whole batch.
func (s *DataService) AddGroups(ctx context.Context, groups []*models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		if err := s.validator.Struct(g); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group")
		}
		if _, ok := s.arena.assignments[g.AssignmentID]; !ok {
			return notFound("assignment", g.AssignmentID)
		}
	}
	if err := s.store.Groups.PutAll(ctx, groups); err != nil {
		return storeError("add groups", "group", err)
	}
	s.arena.upsertGroups(groups)
	s.invalidate(ctx)
	return nil
}

// RemoveGroups deletes groups with their distribution, grade and record rows.
func (s *DataService) RemoveGroups(ctx context.Context, groups []*models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := idSet(groups, func(g *models.Group) int64 { return g.ID })
	if err := s.store.Groups.RemoveAll(ctx, groups); err != nil {
		return storeError("remove groups", "group", err)
	}
	s.arena.dropGroups(ids)
	s.invalidate(ctx)
	return nil
}

// resolveStored points unsaved groups at the stored group that already holds all of their
// members for the assignment. Groups with no stored counterpart stay unsaved.
func (s *DataService) resolveStored(groups []*models.Group) {
	for _, g := range groups {
		if g.ID != 0 || len(g.MemberIDs) == 0 {
			continue
		}
		gid, ok := s.arena.members[memberKey{g.AssignmentID, g.MemberIDs[0]}]
		for _, id := range g.MemberIDs[1:] {
			if !ok {
				break
			}
			other, found := s.arena.members[memberKey{g.AssignmentID, id}]
			ok = found && other == gid
		}
		if ok {
			g.ID = gid
		}
	}
}

func unsaved(groups []*models.Group) []*models.Group {
	var out []*models.Group
	for _, g := range groups {
		if g.ID == 0 {
			out = append(out, g)
		}
	}
	return out
}

// adoptCreated records groups the store created during a write. Copies sharing an identity
// collapse into one snapshot entry.
func (s *DataService) adoptCreated(ctx context.Context, created []*models.Group) {
	if len(created) == 0 {
		return
	}
	s.arena.upsertGroups(distinctGroups(created))
	s.invalidate(ctx)
	s.logger.Debug("singleton groups created", zap.Int("count", len(created)))
}

func distinctGroups(groups []*models.Group) []*models.Group {
	seen := make(map[int64]bool, len(groups))
	out := make([]*models.Group, 0, len(groups))
	for _, g := range groups {
		if g.ID == 0 || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		out = append(out, g)
	}
	return out
}

// SetDistribution replaces the grader assignment of every part in dist. Unsaved groups are
// created in the same transaction; if the write fails none of them is stored.
func (s *DataService) SetDistribution(ctx context.Context, dist map[int64]map[int64][]*models.Group) error {
	var all []*models.Group
	for partID, byTA := range dist {
		for taID, groups := range byTA {
			for _, g := range groups {
				if g == nil {
					return appErrors.Clone(appErrors.ErrValidation,
						fmt.Sprintf("nil group in distribution of part %d for ta %d", partID, taID))
				}
			}
			all = append(all, groups...)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveStored(all)
	created := unsaved(all)
	if err := s.store.SetDistributionWithGroups(ctx, dist); err != nil {
		return storeError("set distribution", "distribution", err)
	}
	s.adoptCreated(ctx, created)
	return nil
}

// AssignGrader moves one group to a TA for a part. models.Unassigned removes the assignment.
func (s *DataService) AssignGrader(ctx context.Context, partID int64, group *models.Group, taID int64) error {
	if group == nil {
		return appErrors.Clone(appErrors.ErrValidation, "group is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveStored([]*models.Group{group})
	created := unsaved([]*models.Group{group})
	if err := s.store.AssignGraderWithGroup(ctx, partID, group, taID); err != nil {
		return storeError("assign grader", group.Name, err)
	}
	s.adoptCreated(ctx, created)
	return nil
}

// AssignedGroups returns the groups assigned for a part, limited to one TA unless taID is
// models.Unassigned. The result is never nil.
func (s *DataService) AssignedGroups(ctx context.Context, partID, taID int64) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		ids []int64
		err error
	)
	if taID == models.Unassigned {
		ids, err = s.store.Distributions.AssignedGroups(ctx, partID)
	} else {
		ids, err = s.store.Distributions.AssignedGroupsFor(ctx, partID, taID)
	}
	if err != nil {
		return nil, storeError("assigned groups", "distribution", err)
	}
	return s.groupsByID(ids), nil
}

// Distribution returns TA id -> group ids for a part.
func (s *DataService) Distribution(ctx context.Context, partID int64) (map[int64][]int64, error) {
	dist, err := s.store.Distributions.GetDistribution(ctx, partID)
	if err != nil {
		return nil, storeError("distribution", "distribution", err)
	}
	return dist, nil
}

func (s *DataService) groupsByID(ids []int64) []*models.Group {
	out := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		g, ok := s.arena.groups[id]
		if !ok {
			s.logger.Warn("group missing from snapshot, refresh required", zap.Int64("group_id", id))
			continue
		}
		out = append(out, g.Clone())
	}
	return out
}

// Blacklist stops a TA from grading the students. Any distribution row that assigns one of
// their groups to the TA is removed in the same transaction. Repeated calls are no-ops.
func (s *DataService) Blacklist(ctx context.Context, taID int64, studentIDs []int64) error {
	return storeError("blacklist", "blacklist", s.store.Blacklist.BlacklistAndUnassign(ctx, taID, studentIDs))
}

// Unblacklist removes blacklist entries. Missing entries are ignored.
func (s *DataService) Unblacklist(ctx context.Context, taID int64, studentIDs []int64) error {
	return storeError("unblacklist", "blacklist", s.store.Blacklist.Unblacklist(ctx, taID, studentIDs))
}

// BlacklistFor returns the student ids the TA must not grade.
func (s *DataService) BlacklistFor(ctx context.Context, taID int64) ([]int64, error) {
	ids, err := s.store.Blacklist.GetBlacklist(ctx, taID)
	if err != nil {
		return nil, storeError("get blacklist", "blacklist", err)
	}
	return ids, nil
}

// AllBlacklisted returns every student blacklisted by any TA.
func (s *DataService) AllBlacklisted(ctx context.Context) ([]int64, error) {
	ids, err := s.store.Blacklist.GetAllBlacklisted(ctx)
	if err != nil {
		return nil, storeError("get blacklist", "blacklist", err)
	}
	return ids, nil
}
