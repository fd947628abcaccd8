package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

// treeFamily implements putAll/getAll/removeAll for one entity family of the assignment
// tree. Child families need the parent identity set on each entity before putAll.
type treeFamily[T any] struct {
	exec    *executor
	entity  string
	table   string
	id      func(*T) int64
	parent  func(*T) int64
	put     func(ctx context.Context, tx *sqlx.Tx, h *commitHooks, parentID int64, item *T) error
	clear   func(*T)
	collect func([]*models.Assignment) []*T
}

// PutAll inserts or updates the batch with everything attached to it, atomically.
func (f *treeFamily[T]) PutAll(ctx context.Context, items []*T) error {
	batch := unique(items, f.id)
	if len(batch) == 0 {
		return nil
	}
	return f.exec.inTx(ctx, "put "+f.table, func(tx *sqlx.Tx, h *commitHooks) error {
		for _, item := range batch {
			var parentID int64
			if f.parent != nil {
				parentID = f.parent(item)
				if parentID == 0 {
					return constraintf(KindMissingIdentity, "%s has no persisted parent", f.entity)
				}
			}
			if err := f.put(ctx, tx, h, parentID, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAll returns fresh copies of every stored entity of the family with its subtree.
func (f *treeFamily[T]) GetAll(ctx context.Context) ([]*T, error) {
	var out []*T
	err := f.exec.read(ctx, "get "+f.table, func(q sqlx.QueryerContext) error {
		tree, err := loadAssignmentTree(ctx, q)
		if err != nil {
			return err
		}
		out = f.collect(tree)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveAll deletes the entities and everything they own. Entities without identity are
// skipped. Identities are cleared in memory once the delete has committed.
func (f *treeFamily[T]) RemoveAll(ctx context.Context, items []*T) error {
	var batch []*T
	for _, item := range unique(items, f.id) {
		if f.id(item) != 0 {
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", f.table)
	return f.exec.inTx(ctx, "remove "+f.table, func(tx *sqlx.Tx, h *commitHooks) error {
		for _, item := range batch {
			if err := exec(ctx, tx, query, f.id(item)); err != nil {
				return fmt.Errorf("delete %s %d: %w", f.entity, f.id(item), err)
			}
			item := item
			h.add(func() { f.clear(item) })
		}
		return nil
	})
}

// AssignmentRepository stores assignments and their owned trees.
type AssignmentRepository struct {
	*treeFamily[models.Assignment]
}

// newAssignmentRepository constructs the repository.
func newAssignmentRepository(exec *executor) *AssignmentRepository {
	return &AssignmentRepository{&treeFamily[models.Assignment]{
		exec:   exec,
		entity: "assignment",
		table:  "assignments",
		id:     assignmentID,
		put: func(ctx context.Context, tx *sqlx.Tx, h *commitHooks, _ int64, a *models.Assignment) error {
			return putAssignmentTx(ctx, tx, h, a)
		},
		clear:   clearAssignment,
		collect: func(tree []*models.Assignment) []*models.Assignment { return tree },
	}}
}

// GradableEventRepository stores gradable events; each needs its AssignmentID.
type GradableEventRepository struct {
	*treeFamily[models.GradableEvent]
}

// newGradableEventRepository constructs the repository.
func newGradableEventRepository(exec *executor) *GradableEventRepository {
	return &GradableEventRepository{&treeFamily[models.GradableEvent]{
		exec:    exec,
		entity:  "gradable event",
		table:   "gradable_events",
		id:      eventID,
		parent:  func(ev *models.GradableEvent) int64 { return ev.AssignmentID },
		put:     putEventTx,
		clear:   clearEvent,
		collect: collectEvents,
	}}
}

// PartRepository stores parts; each needs its GradableEventID.
type PartRepository struct {
	*treeFamily[models.Part]
}

// newPartRepository constructs the repository.
func newPartRepository(exec *executor) *PartRepository {
	return &PartRepository{&treeFamily[models.Part]{
		exec:    exec,
		entity:  "part",
		table:   "parts",
		id:      partID,
		parent:  func(p *models.Part) int64 { return p.GradableEventID },
		put:     putPartTx,
		clear:   clearPart,
		collect: collectParts,
	}}
}

// ActionRepository stores actions; each needs its PartID.
type ActionRepository struct {
	*treeFamily[models.Action]
}

// newActionRepository constructs the repository.
func newActionRepository(exec *executor) *ActionRepository {
	return &ActionRepository{&treeFamily[models.Action]{
		exec:   exec,
		entity: "action",
		table:  "actions",
		id:     actionID,
		parent: func(a *models.Action) int64 { return a.PartID },
		put:    putActionTx,
		clear:  clearAction,
		collect: func(tree []*models.Assignment) []*models.Action {
			var out []*models.Action
			for _, p := range collectParts(tree) {
				out = append(out, p.Actions...)
			}
			return out
		},
	}}
}

// ActionPropertyRepository stores action properties; each needs its ActionID.
type ActionPropertyRepository struct {
	*treeFamily[models.ActionProperty]
}

// newActionPropertyRepository constructs the repository.
func newActionPropertyRepository(exec *executor) *ActionPropertyRepository {
	return &ActionPropertyRepository{&treeFamily[models.ActionProperty]{
		exec:   exec,
		entity: "action property",
		table:  "action_properties",
		id:     propertyID,
		parent: func(p *models.ActionProperty) int64 { return p.ActionID },
		put:    putPropertyTx,
		clear:  func(p *models.ActionProperty) { p.ID, p.ActionID = 0, 0 },
		collect: func(tree []*models.Assignment) []*models.ActionProperty {
			var out []*models.ActionProperty
			for _, p := range collectParts(tree) {
				for _, a := range p.Actions {
					out = append(out, a.Properties...)
				}
			}
			return out
		},
	}}
}

// InclusionFilterRepository stores inclusion filters; each needs its PartID.
type InclusionFilterRepository struct {
	*treeFamily[models.InclusionFilter]
}

// newInclusionFilterRepository constructs the repository.
func newInclusionFilterRepository(exec *executor) *InclusionFilterRepository {
	return &InclusionFilterRepository{&treeFamily[models.InclusionFilter]{
		exec:   exec,
		entity: "inclusion filter",
		table:  "inclusion_filters",
		id:     filterID,
		parent: func(f *models.InclusionFilter) int64 { return f.PartID },
		put:    putFilterTx,
		clear:  func(f *models.InclusionFilter) { f.ID, f.PartID = 0, 0 },
		collect: func(tree []*models.Assignment) []*models.InclusionFilter {
			var out []*models.InclusionFilter
			for _, p := range collectParts(tree) {
				out = append(out, p.InclusionFilters...)
			}
			return out
		},
	}}
}

// GradingSheetRepository stores grading sheets with their sections, subsections and
// details; each sheet needs its PartID. A part has at most one sheet.
type GradingSheetRepository struct {
	*treeFamily[models.GradingSheet]
}

// newGradingSheetRepository constructs the repository.
func newGradingSheetRepository(exec *executor) *GradingSheetRepository {
	return &GradingSheetRepository{&treeFamily[models.GradingSheet]{
		exec:   exec,
		entity: "grading sheet",
		table:  "grading_sheets",
		id:     sheetID,
		parent: func(s *models.GradingSheet) int64 { return s.PartID },
		put:    putSheetTx,
		clear:  clearSheet,
		collect: func(tree []*models.Assignment) []*models.GradingSheet {
			var out []*models.GradingSheet
			for _, p := range collectParts(tree) {
				if p.GradingSheet != nil {
					out = append(out, p.GradingSheet)
				}
			}
			return out
		},
	}}
}

func collectEvents(tree []*models.Assignment) []*models.GradableEvent {
	var out []*models.GradableEvent
	for _, a := range tree {
		out = append(out, a.GradableEvents...)
	}
	return out
}

func collectParts(tree []*models.Assignment) []*models.Part {
	var out []*models.Part
	for _, ev := range collectEvents(tree) {
		out = append(out, ev.Parts...)
	}
	return out
}
