package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

type gradeRow struct {
	PartID     int64           `db:"part_id"`
	GroupID    int64           `db:"group_id"`
	TAID       sql.NullInt64   `db:"ta_id"`
	Earned     sql.NullFloat64 `db:"earned"`
	Submitted  bool            `db:"submitted"`
	RecordedAt string          `db:"recorded_at"`
}

func (r gradeRow) toModel() (*models.GradeRecord, error) {
	at, err := parseTimeText(r.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &models.GradeRecord{
		PartID:     r.PartID,
		GroupID:    r.GroupID,
		TAID:       r.TAID.Int64,
		Earned:     floatPtr(r.Earned),
		Submitted:  r.Submitted,
		RecordedAt: at,
	}, nil
}

const gradeColumns = `part_id, group_id, ta_id, earned, submitted, recorded_at`

// GradeRepository keeps one grade record per (part, group).
type GradeRepository struct {
	exec *executor
}

func newGradeRepository(exec *executor) *GradeRepository {
	return &GradeRepository{exec: exec}
}

// SetEarned records the grade of a group for a part, replacing any earlier record as a
// whole.
func (r *GradeRepository) SetEarned(ctx context.Context, groupID, partID, taID int64, earned *float64, submitted bool, at time.Time) error {
	return r.exec.inTx(ctx, "set earned", func(tx *sqlx.Tx, _ *commitHooks) error {
		return setEarnedTx(ctx, tx, groupID, partID, taID, earned, submitted, at)
	})
}

func setEarnedTx(ctx context.Context, tx *sqlx.Tx, groupID, partID, taID int64, earned *float64, submitted bool, at time.Time) error {
	if err := exec(ctx, tx, `INSERT INTO grade_records (`+gradeColumns+`) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (part_id, group_id) DO UPDATE SET
            ta_id = excluded.ta_id, earned = excluded.earned,
            submitted = excluded.submitted, recorded_at = excluded.recorded_at`,
		partID, groupID, nullID(taID), nullFloat(earned), submitted, timeText(at)); err != nil {
		return fmt.Errorf("upsert grade of group %d for part %d: %w", groupID, partID, err)
	}
	return nil
}

// GetEarned returns the grade record of the group for the part, or nil.
func (r *GradeRepository) GetEarned(ctx context.Context, groupID, partID int64) (*models.GradeRecord, error) {
	var row gradeRow
	found := true
	err := r.exec.read(ctx, "get earned", func(q sqlx.QueryerContext) error {
		err := sqlx.GetContext(ctx, q, &row,
			r.exec.rebind(`SELECT `+gradeColumns+` FROM grade_records WHERE part_id = ? AND group_id = ?`), partID, groupID)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	rec, err := row.toModel()
	if err != nil {
		return nil, &StorageFaultError{Op: "get earned", Err: err}
	}
	return rec, nil
}

// GetEarnedForGroups returns the grade records of many groups for one part keyed by group.
// Groups without a record are absent from the map.
func (r *GradeRepository) GetEarnedForGroups(ctx context.Context, partID int64, groupIDs []int64) (map[int64]*models.GradeRecord, error) {
	out := make(map[int64]*models.GradeRecord, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var rows []gradeRow
	err := r.exec.read(ctx, "get earned for groups", func(q sqlx.QueryerContext) error {
		query, args, err := sqlx.In(`SELECT `+gradeColumns+` FROM grade_records WHERE part_id = ? AND group_id IN (?)`, partID, groupIDs)
		if err != nil {
			return err
		}
		return sqlx.SelectContext(ctx, q, &rows, r.exec.rebind(query), args...)
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, &StorageFaultError{Op: "get earned for groups", Err: err}
		}
		out[row.GroupID] = rec
	}
	return out, nil
}

// SetEarnedSubmitted flips only the submitted flag of existing records.
func (r *GradeRepository) SetEarnedSubmitted(ctx context.Context, partID int64, groupIDs []int64, submitted bool) error {
	if len(groupIDs) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "set earned submitted", func(tx *sqlx.Tx, _ *commitHooks) error {
		query, args, err := sqlx.In(`UPDATE grade_records SET submitted = ? WHERE part_id = ? AND group_id IN (?)`, submitted, partID, groupIDs)
		if err != nil {
			return err
		}
		return exec(ctx, tx, query, args...)
	})
}
