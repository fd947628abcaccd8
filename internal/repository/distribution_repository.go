package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

// DistributionRepository keeps the part x TA x group grading relation. A group has at most
// one grader per part; both read projections come from the same table.
type DistributionRepository struct {
	exec *executor
}

func newDistributionRepository(exec *executor) *DistributionRepository {
	return &DistributionRepository{exec: exec}
}

// SetDistribution replaces the whole grader assignment of every part named in dist. Parts
// not in dist are untouched. One bad triple fails the call for every part.
func (r *DistributionRepository) SetDistribution(ctx context.Context, dist models.Distribution) error {
	if len(dist) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "set distribution", func(tx *sqlx.Tx, _ *commitHooks) error {
		return setDistributionTx(ctx, tx, dist)
	})
}

func setDistributionTx(ctx context.Context, tx *sqlx.Tx, dist models.Distribution) error {
	for _, partID := range sortedKeys(dist) {
		if err := exec(ctx, tx, `DELETE FROM distributions WHERE part_id = ?`, partID); err != nil {
			return fmt.Errorf("clear distribution of part %d: %w", partID, err)
		}
		byTA := dist[partID]
		for _, taID := range sortedKeys(byTA) {
			for _, groupID := range byTA[taID] {
				if err := exec(ctx, tx, `INSERT INTO distributions (part_id, group_id, ta_id) VALUES (?, ?, ?)`,
					partID, groupID, taID); err != nil {
					return fmt.Errorf("assign group %d of part %d to ta %d: %w", groupID, partID, taID, err)
				}
			}
		}
	}
	return nil
}

// AssignGrader makes taID the only grader of the group for the part. Assigning the current
// grader again writes nothing; models.Unassigned removes the assignment.
func (r *DistributionRepository) AssignGrader(ctx context.Context, partID, groupID, taID int64) error {
	return r.exec.inTx(ctx, "assign grader", func(tx *sqlx.Tx, _ *commitHooks) error {
		return assignGraderTx(ctx, tx, partID, groupID, taID)
	})
}

func assignGraderTx(ctx context.Context, tx *sqlx.Tx, partID, groupID, taID int64) error {
	var current int64
	err := tx.GetContext(ctx, &current, tx.Rebind(`SELECT ta_id FROM distributions WHERE part_id = ? AND group_id = ?`), partID, groupID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = models.Unassigned
	case err != nil:
		return fmt.Errorf("read grader of group %d: %w", groupID, err)
	}

	if current == taID {
		return nil
	}
	if taID == models.Unassigned {
		return exec(ctx, tx, `DELETE FROM distributions WHERE part_id = ? AND group_id = ?`, partID, groupID)
	}
	return exec(ctx, tx, `INSERT INTO distributions (part_id, group_id, ta_id) VALUES (?, ?, ?)
        ON CONFLICT (part_id, group_id) DO UPDATE SET ta_id = excluded.ta_id`, partID, groupID, taID)
}

// AssignedGroups returns the groups with any grader for the part. Never nil.
func (r *DistributionRepository) AssignedGroups(ctx context.Context, partID int64) ([]int64, error) {
	return r.groupIDs(ctx, "get assigned groups",
		`SELECT group_id FROM distributions WHERE part_id = ? ORDER BY group_id`, partID)
}

// AssignedGroupsFor returns the groups the TA grades for the part. Never nil.
func (r *DistributionRepository) AssignedGroupsFor(ctx context.Context, partID, taID int64) ([]int64, error) {
	return r.groupIDs(ctx, "get assigned groups for ta",
		`SELECT group_id FROM distributions WHERE part_id = ? AND ta_id = ? ORDER BY group_id`, partID, taID)
}

func (r *DistributionRepository) groupIDs(ctx context.Context, op, query string, args ...interface{}) ([]int64, error) {
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

// GetDistribution returns the TA -> groups map of a part. Never nil.
func (r *DistributionRepository) GetDistribution(ctx context.Context, partID int64) (map[int64][]int64, error) {
	var rows []struct {
		TAID    int64 `db:"ta_id"`
		GroupID int64 `db:"group_id"`
	}
	err := r.exec.read(ctx, "get distribution", func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows,
			r.exec.rebind(`SELECT ta_id, group_id FROM distributions WHERE part_id = ? ORDER BY ta_id, group_id`), partID)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]int64)
	for _, row := range rows {
		out[row.TAID] = append(out[row.TAID], row.GroupID)
	}
	return out, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
