package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

// The writes below accept groups that may not be stored yet. Unsaved groups are inserted in
// the same transaction as the write that references them, so a failed write leaves no group
// behind and every ID stays zero.

type groupKey struct {
	assignmentID int64
	name         string
}

// pendingGroups inserts each unsaved group once per transaction. Copies sharing an
// assignment and name resolve to the same row.
type pendingGroups struct {
	created map[groupKey]int64
}

func newPendingGroups() *pendingGroups {
	return &pendingGroups{created: make(map[groupKey]int64)}
}

func (p *pendingGroups) resolve(ctx context.Context, tx *sqlx.Tx, h *commitHooks, g *models.Group) (int64, error) {
	if g == nil {
		return 0, constraintf(KindMissingIdentity, "group is nil")
	}
	if g.ID != 0 {
		return g.ID, nil
	}
	key := groupKey{g.AssignmentID, g.Name}
	if id, ok := p.created[key]; ok {
		h.add(func() { g.ID = id })
		return id, nil
	}
	id, err := putGroupTx(ctx, tx, h, g)
	if err != nil {
		return 0, err
	}
	p.created[key] = id
	return id, nil
}

// SetDistributionWithGroups stores the unsaved groups of dist and replaces the grader
// assignment of every part in dist, all in one transaction.
func (s *Store) SetDistributionWithGroups(ctx context.Context, dist map[int64]map[int64][]*models.Group) error {
	if len(dist) == 0 {
		return nil
	}
	return s.exec.inTx(ctx, "set distribution", func(tx *sqlx.Tx, h *commitHooks) error {
		pending := newPendingGroups()
		ids := make(models.Distribution, len(dist))
		for _, partID := range sortedKeys(dist) {
			byTA := dist[partID]
			ids[partID] = make(map[int64][]int64, len(byTA))
			for _, taID := range sortedKeys(byTA) {
				for _, g := range byTA[taID] {
					id, err := pending.resolve(ctx, tx, h, g)
					if err != nil {
						return err
					}
					ids[partID][taID] = append(ids[partID][taID], id)
				}
			}
		}
		return setDistributionTx(ctx, tx, ids)
	})
}

// AssignGraderWithGroup stores g when unsaved and makes taID its grader for the part in one
// transaction.
func (s *Store) AssignGraderWithGroup(ctx context.Context, partID int64, g *models.Group, taID int64) error {
	return s.exec.inTx(ctx, "assign grader", func(tx *sqlx.Tx, h *commitHooks) error {
		id, err := newPendingGroups().resolve(ctx, tx, h, g)
		if err != nil {
			return err
		}
		return assignGraderTx(ctx, tx, partID, id, taID)
	})
}

// SetEarnedWithGroup stores g when unsaved and records its grade for the part in one
// transaction.
func (s *Store) SetEarnedWithGroup(ctx context.Context, g *models.Group, partID, taID int64, earned *float64, submitted bool, at time.Time) error {
	return s.exec.inTx(ctx, "set earned", func(tx *sqlx.Tx, h *commitHooks) error {
		id, err := newPendingGroups().resolve(ctx, tx, h, g)
		if err != nil {
			return err
		}
		return setEarnedTx(ctx, tx, id, partID, taID, earned, submitted, at)
	})
}
