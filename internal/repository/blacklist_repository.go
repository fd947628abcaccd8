package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// BlacklistRepository keeps the TA/student exclusion relation. Adding a present pair and
// removing an absent one are both no-ops.
type BlacklistRepository struct {
	exec *executor
}

func newBlacklistRepository(exec *executor) *BlacklistRepository {
	return &BlacklistRepository{exec: exec}
}

// Blacklist bars the TA from grading the students.
func (r *BlacklistRepository) Blacklist(ctx context.Context, taID int64, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "blacklist", func(tx *sqlx.Tx, _ *commitHooks) error {
		return blacklistTx(ctx, tx, taID, studentIDs)
	})
}

// BlacklistAndUnassign blacklists the students and drops every distribution row that has
// the TA grading a group containing one of them.
func (r *BlacklistRepository) BlacklistAndUnassign(ctx context.Context, taID int64, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "blacklist and unassign", func(tx *sqlx.Tx, _ *commitHooks) error {
		if err := blacklistTx(ctx, tx, taID, studentIDs); err != nil {
			return err
		}
		query, args, err := sqlx.In(`DELETE FROM distributions WHERE ta_id = ? AND group_id IN
            (SELECT group_id FROM group_members WHERE student_id IN (?))`, taID, studentIDs)
		if err != nil {
			return err
		}
		if err := exec(ctx, tx, query, args...); err != nil {
			return fmt.Errorf("unassign blacklisted groups from ta %d: %w", taID, err)
		}
		return nil
	})
}

func blacklistTx(ctx context.Context, tx *sqlx.Tx, taID int64, studentIDs []int64) error {
	for _, studentID := range studentIDs {
		if err := exec(ctx, tx, `INSERT INTO blacklist (ta_id, student_id) VALUES (?, ?)
            ON CONFLICT (ta_id, student_id) DO NOTHING`, taID, studentID); err != nil {
			return fmt.Errorf("blacklist student %d for ta %d: %w", studentID, taID, err)
		}
	}
	return nil
}

// Unblacklist lifts the TA's exclusion of the students.
func (r *BlacklistRepository) Unblacklist(ctx context.Context, taID int64, studentIDs []int64) error {
	if len(studentIDs) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "unblacklist", func(tx *sqlx.Tx, _ *commitHooks) error {
		query, args, err := sqlx.In(`DELETE FROM blacklist WHERE ta_id = ? AND student_id IN (?)`, taID, studentIDs)
		if err != nil {
			return err
		}
		return exec(ctx, tx, query, args...)
	})
}

// GetBlacklist returns the students the TA has blacklisted. Never nil.
func (r *BlacklistRepository) GetBlacklist(ctx context.Context, taID int64) ([]int64, error) {
	return r.studentIDs(ctx, "get blacklist", `SELECT student_id FROM blacklist WHERE ta_id = ? ORDER BY student_id`, taID)
}

// GetAllBlacklisted returns every student blacklisted by any TA. Never nil.
func (r *BlacklistRepository) GetAllBlacklisted(ctx context.Context) ([]int64, error) {
	return r.studentIDs(ctx, "get all blacklisted", `SELECT DISTINCT student_id FROM blacklist ORDER BY student_id`)
}

func (r *BlacklistRepository) studentIDs(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
	ids := []int64{}
	err := r.exec.read(ctx, op, func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &ids, r.exec.rebind(query), args...)
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
