package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

// Occurrences, extensions and exemptions are keyed by (event or part, group). Setting a
// key again overwrites the row; deleting a missing key is a no-op.

type occurrenceRow struct {
	GradableEventID int64         `db:"gradable_event_id"`
	GroupID         int64         `db:"group_id"`
	OccurredAt      string        `db:"occurred_at"`
	TAID            sql.NullInt64 `db:"ta_id"`
	RecordedAt      string        `db:"recorded_at"`
}

type extensionRow struct {
	GradableEventID int64         `db:"gradable_event_id"`
	GroupID         int64         `db:"group_id"`
	OnTime          string        `db:"on_time"`
	ShiftDates      bool          `db:"shift_dates"`
	Note            string        `db:"note"`
	TAID            sql.NullInt64 `db:"ta_id"`
	RecordedAt      string        `db:"recorded_at"`
}

type exemptionRow struct {
	PartID     int64         `db:"part_id"`
	GroupID    int64         `db:"group_id"`
	Note       string        `db:"note"`
	TAID       sql.NullInt64 `db:"ta_id"`
	RecordedAt string        `db:"recorded_at"`
}

// RecordRepository stores handin occurrences, deadline extensions and exemptions.
type RecordRepository struct {
	exec *executor
}

func newRecordRepository(exec *executor) *RecordRepository {
	return &RecordRepository{exec: exec}
}

// SetOccurrences records when groups handed in, atomically for the whole batch.
func (r *RecordRepository) SetOccurrences(ctx context.Context, occurrences []models.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "set occurrences", func(tx *sqlx.Tx, _ *commitHooks) error {
		for _, o := range occurrences {
			if err := exec(ctx, tx, `INSERT INTO occurrences (gradable_event_id, group_id, occurred_at, ta_id, recorded_at)
                VALUES (?, ?, ?, ?, ?)
                ON CONFLICT (gradable_event_id, group_id) DO UPDATE SET
                    occurred_at = excluded.occurred_at, ta_id = excluded.ta_id, recorded_at = excluded.recorded_at`,
				o.GradableEventID, o.GroupID, timeText(o.OccurredAt), nullID(o.TAID), timeText(o.RecordedAt)); err != nil {
				return fmt.Errorf("upsert occurrence of group %d: %w", o.GroupID, err)
			}
		}
		return nil
	})
}

// GetOccurrences returns the occurrences of an event keyed by group.
func (r *RecordRepository) GetOccurrences(ctx context.Context, eventID int64) (map[int64]models.Occurrence, error) {
	var rows []occurrenceRow
	err := r.exec.read(ctx, "get occurrences", func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows, r.exec.rebind(`SELECT gradable_event_id, group_id, occurred_at, ta_id, recorded_at
            FROM occurrences WHERE gradable_event_id = ?`), eventID)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.Occurrence, len(rows))
	for _, row := range rows {
		occurred, err := parseTimeText(row.OccurredAt)
		if err != nil {
			return nil, &StorageFaultError{Op: "get occurrences", Err: err}
		}
		recorded, err := parseTimeText(row.RecordedAt)
		if err != nil {
			return nil, &StorageFaultError{Op: "get occurrences", Err: err}
		}
		out[row.GroupID] = models.Occurrence{
			GradableEventID: row.GradableEventID,
			GroupID:         row.GroupID,
			OccurredAt:      occurred,
			TAID:            row.TAID.Int64,
			RecordedAt:      recorded,
		}
	}
	return out, nil
}

// DeleteOccurrences removes the occurrences of the groups for the event.
func (r *RecordRepository) DeleteOccurrences(ctx context.Context, eventID int64, groupIDs []int64) error {
	return r.deleteKeyed(ctx, "delete occurrences", `DELETE FROM occurrences WHERE gradable_event_id = ? AND group_id IN (?)`, eventID, groupIDs)
}

// SetExtensions records per-group deadline overrides, atomically for the whole batch.
func (r *RecordRepository) SetExtensions(ctx context.Context, extensions []models.Extension) error {
	if len(extensions) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "set extensions", func(tx *sqlx.Tx, _ *commitHooks) error {
		for _, e := range extensions {
			if err := exec(ctx, tx, `INSERT INTO extensions (gradable_event_id, group_id, on_time, shift_dates, note, ta_id, recorded_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (gradable_event_id, group_id) DO UPDATE SET
                    on_time = excluded.on_time, shift_dates = excluded.shift_dates, note = excluded.note,
                    ta_id = excluded.ta_id, recorded_at = excluded.recorded_at`,
				e.GradableEventID, e.GroupID, timeText(e.OnTime), e.ShiftDates, e.Note, nullID(e.TAID), timeText(e.RecordedAt)); err != nil {
				return fmt.Errorf("upsert extension of group %d: %w", e.GroupID, err)
			}
		}
		return nil
	})
}

// GetExtensions returns the extensions of an event keyed by group.
func (r *RecordRepository) GetExtensions(ctx context.Context, eventID int64) (map[int64]models.Extension, error) {
	var rows []extensionRow
	err := r.exec.read(ctx, "get extensions", func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows, r.exec.rebind(`SELECT gradable_event_id, group_id, on_time, shift_dates, note, ta_id, recorded_at
            FROM extensions WHERE gradable_event_id = ?`), eventID)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.Extension, len(rows))
	for _, row := range rows {
		onTime, err := parseTimeText(row.OnTime)
		if err != nil {
			return nil, &StorageFaultError{Op: "get extensions", Err: err}
		}
		recorded, err := parseTimeText(row.RecordedAt)
		if err != nil {
			return nil, &StorageFaultError{Op: "get extensions", Err: err}
		}
		out[row.GroupID] = models.Extension{
			GradableEventID: row.GradableEventID,
			GroupID:         row.GroupID,
			OnTime:          onTime,
			ShiftDates:      row.ShiftDates,
			Note:            row.Note,
			TAID:            row.TAID.Int64,
			RecordedAt:      recorded,
		}
	}
	return out, nil
}

// DeleteExtensions removes the extensions of the groups for the event.
func (r *RecordRepository) DeleteExtensions(ctx context.Context, eventID int64, groupIDs []int64) error {
	return r.deleteKeyed(ctx, "delete extensions", `DELETE FROM extensions WHERE gradable_event_id = ? AND group_id IN (?)`, eventID, groupIDs)
}

// GrantExemptions waives the listed groups from their parts, atomically for the batch.
func (r *RecordRepository) GrantExemptions(ctx context.Context, exemptions []models.Exemption) error {
	if len(exemptions) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "grant exemptions", func(tx *sqlx.Tx, _ *commitHooks) error {
		for _, e := range exemptions {
			if err := exec(ctx, tx, `INSERT INTO exemptions (part_id, group_id, note, ta_id, recorded_at) VALUES (?, ?, ?, ?, ?)
                ON CONFLICT (part_id, group_id) DO UPDATE SET
                    note = excluded.note, ta_id = excluded.ta_id, recorded_at = excluded.recorded_at`,
				e.PartID, e.GroupID, e.Note, nullID(e.TAID), timeText(e.RecordedAt)); err != nil {
				return fmt.Errorf("upsert exemption of group %d: %w", e.GroupID, err)
			}
		}
		return nil
	})
}

// GetExemptions returns the exemptions of a part keyed by group.
func (r *RecordRepository) GetExemptions(ctx context.Context, partID int64) (map[int64]models.Exemption, error) {
	var rows []exemptionRow
	err := r.exec.read(ctx, "get exemptions", func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows, r.exec.rebind(`SELECT part_id, group_id, note, ta_id, recorded_at
            FROM exemptions WHERE part_id = ?`), partID)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.Exemption, len(rows))
	for _, row := range rows {
		recorded, err := parseTimeText(row.RecordedAt)
		if err != nil {
			return nil, &StorageFaultError{Op: "get exemptions", Err: err}
		}
		out[row.GroupID] = models.Exemption{
			PartID:     row.PartID,
			GroupID:    row.GroupID,
			Note:       row.Note,
			TAID:       row.TAID.Int64,
			RecordedAt: recorded,
		}
	}
	return out, nil
}

// RemoveExemptions lifts the exemptions of the groups for the part.
func (r *RecordRepository) RemoveExemptions(ctx context.Context, partID int64, groupIDs []int64) error {
	return r.deleteKeyed(ctx, "remove exemptions", `DELETE FROM exemptions WHERE part_id = ? AND group_id IN (?)`, partID, groupIDs)
}

func (r *RecordRepository) deleteKeyed(ctx context.Context, op, query string, key int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, op, func(tx *sqlx.Tx, _ *commitHooks) error {
		expanded, args, err := sqlx.In(query, key, groupIDs)
		if err != nil {
			return err
		}
		return exec(ctx, tx, expanded, args...)
	})
}
