package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

type groupRow struct {
	ID           int64  `db:"id"`
	AssignmentID int64  `db:"assignment_id"`
	Name         string `db:"name"`
}

type memberRow struct {
	GroupID   int64 `db:"group_id"`
	StudentID int64 `db:"student_id"`
}

// GroupRepository stores explicit groups. Group names are unique within an assignment and
// a student is in at most one group per assignment; the schema enforces both.
type GroupRepository struct {
	exec *executor
}

func newGroupRepository(exec *executor) *GroupRepository {
	return &GroupRepository{exec: exec}
}

// PutAll inserts new groups and updates known ones, replacing their member sets. Any
// violation fails the whole batch.
func (r *GroupRepository) PutAll(ctx context.Context, groups []*models.Group) error {
	batch := unique(groups, groupID)
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "put groups", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, g := range batch {
			if _, err := putGroupTx(ctx, tx, h, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// putGroupTx writes one group and returns its id. A new id reaches g only through h.
func putGroupTx(ctx context.Context, tx *sqlx.Tx, h *commitHooks, g *models.Group) (int64, error) {
	if g.AssignmentID == 0 {
		return 0, constraintf(KindMissingIdentity, "group %q has no persisted assignment", g.Name)
	}
	members := g.Clone()
	members.NormalizeMembers()
	if len(members.MemberIDs) == 0 {
		return 0, constraintf(KindEmptyGroup, "group %q has no members", g.Name)
	}

	id := g.ID
	if id == 0 {
		newID, err := insertID(ctx, tx, `INSERT INTO student_groups (assignment_id, name) VALUES (?, ?)`, g.AssignmentID, g.Name)
		if err != nil {
			return 0, retag(fmt.Errorf("insert group %q: %w", g.Name, err), KindUnique, KindDuplicateGroupName)
		}
		id = newID
		h.add(func() { g.ID = newID })
	} else {
		if err := exec(ctx, tx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
			return 0, fmt.Errorf("clear members of group %d: %w", id, err)
		}
		if err := updateOne(ctx, tx, "group", id, `UPDATE student_groups SET assignment_id = ?, name = ? WHERE id = ?`,
			g.AssignmentID, g.Name, id); err != nil {
			return 0, retag(fmt.Errorf("update group %d: %w", id, err), KindUnique, KindDuplicateGroupName)
		}
	}

	for _, studentID := range members.MemberIDs {
		if err := exec(ctx, tx, `INSERT INTO group_members (group_id, assignment_id, student_id) VALUES (?, ?, ?)`,
			id, g.AssignmentID, studentID); err != nil {
			return 0, retag(fmt.Errorf("add student %d to group %q: %w", studentID, g.Name, err), KindUnique, KindStudentAlreadyGrouped)
		}
	}
	return id, nil
}

// GetAll returns every stored group ordered by assignment then identity.
func (r *GroupRepository) GetAll(ctx context.Context) ([]*models.Group, error) {
	return r.load(ctx, "get groups", 0)
}

// ByAssignment returns the stored groups of one assignment.
func (r *GroupRepository) ByAssignment(ctx context.Context, assignmentID int64) ([]*models.Group, error) {
	return r.load(ctx, "get groups by assignment", assignmentID)
}

func (r *GroupRepository) load(ctx context.Context, op string, assignmentID int64) ([]*models.Group, error) {
	groupQuery := `SELECT id, assignment_id, name FROM student_groups`
	memberQuery := `SELECT group_id, student_id FROM group_members`
	var args []interface{}
	if assignmentID != 0 {
		groupQuery += ` WHERE assignment_id = ?`
		memberQuery += ` WHERE assignment_id = ?`
		args = append(args, assignmentID)
	}
	groupQuery += ` ORDER BY assignment_id, id`
	memberQuery += ` ORDER BY group_id, student_id`

	var (
		groups  []groupRow
		members []memberRow
	)
	err := r.exec.read(ctx, op, func(q sqlx.QueryerContext) error {
		if err := sqlx.SelectContext(ctx, q, &groups, r.exec.rebind(groupQuery), args...); err != nil {
			return fmt.Errorf("select groups: %w", err)
		}
		if err := sqlx.SelectContext(ctx, q, &members, r.exec.rebind(memberQuery), args...); err != nil {
			return fmt.Errorf("select group members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byGroup := make(map[int64][]int64, len(groups))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m.StudentID)
	}
	var out []*models.Group
	for _, g := range groups {
		out = append(out, &models.Group{ID: g.ID, AssignmentID: g.AssignmentID, Name: g.Name, MemberIDs: byGroup[g.ID]})
	}
	return out, nil
}

// RemoveAll deletes the groups with their memberships, distribution rows and every grade,
// occurrence, extension and exemption recorded for them.
func (r *GroupRepository) RemoveAll(ctx context.Context, groups []*models.Group) error {
	var batch []*models.Group
	for _, g := range unique(groups, groupID) {
		if g.ID != 0 {
			batch = append(batch, g)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "remove groups", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, g := range batch {
			if err := exec(ctx, tx, `DELETE FROM student_groups WHERE id = ?`, g.ID); err != nil {
				return fmt.Errorf("delete group %d: %w", g.ID, err)
			}
			g := g
			h.add(func() { g.ID = 0 })
		}
		return nil
	})
}
