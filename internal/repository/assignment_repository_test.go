package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradestore/internal/models"
)

func TestAssignmentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newAssignmentTree("hw1", "hw1-code")
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))

	require.NotZero(t, a.ID)
	ev := a.GradableEvents[0]
	assert.NotZero(t, ev.ID)
	assert.Equal(t, a.ID, ev.AssignmentID)
	part := ev.Parts[0]
	assert.Equal(t, ev.ID, part.GradableEventID)
	assert.NotZero(t, part.Actions[0].Properties[1].ID)
	assert.NotZero(t, part.GradingSheet.Sections[0].Subsections[0].Details[0].ID)

	got, err := store.Assignments.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0])
	assert.NotSame(t, a, got[0])
}

func TestChildFamiliesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := &models.Assignment{Name: "lab"}
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))

	ev := &models.GradableEvent{AssignmentID: a.ID, Name: "checkoff", Deadline: models.DeadlineInfo{Type: models.DeadlineNone}}
	require.NoError(t, store.GradableEvents.PutAll(ctx, []*models.GradableEvent{ev}))

	part := &models.Part{GradableEventID: ev.ID, Name: "only", OutOf: 3}
	require.NoError(t, store.Parts.PutAll(ctx, []*models.Part{part}))

	action := &models.Action{PartID: part.ID, Name: "Open", Task: "open"}
	require.NoError(t, store.Actions.PutAll(ctx, []*models.Action{action}))

	prop := &models.ActionProperty{ActionID: action.ID, Key: "editor", Value: "vim"}
	require.NoError(t, store.ActionProperties.PutAll(ctx, []*models.ActionProperty{prop}))

	filter := &models.InclusionFilter{PartID: part.ID, Type: models.FilterFile, Path: "README"}
	require.NoError(t, store.InclusionFilters.PutAll(ctx, []*models.InclusionFilter{filter}))

	sheet := &models.GradingSheet{PartID: part.ID, Sections: []*models.GradingSheetSection{{Name: "All", Order: 1}}}
	require.NoError(t, store.GradingSheets.PutAll(ctx, []*models.GradingSheet{sheet}))

	events, err := store.GradableEvents.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "checkoff", events[0].Name)

	props, err := store.ActionProperties.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*models.ActionProperty{prop}, props)

	filters, err := store.InclusionFilters.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*models.InclusionFilter{filter}, filters)

	sheets, err := store.GradingSheets.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*models.GradingSheet{sheet}, sheets)

	actions, err := store.Actions.GetAll(ctx)
	require.NoError(t, err)
	action.Properties = []*models.ActionProperty{prop}
	assert.Equal(t, []*models.Action{action}, actions)
}

func TestChildWithoutParentIdentityIsRejected(t *testing.T) {
	store := newTestStore(t)

	part := &models.Part{Name: "orphan"}
	err := store.Parts.PutAll(context.Background(), []*models.Part{part})

	kind, ok := IsConstraint(err)
	require.True(t, ok)
	assert.Equal(t, KindMissingIdentity, kind)
	assert.Zero(t, part.ID)
}

func TestChildWithUnknownParentIsForeignKeyViolation(t *testing.T) {
	store := newTestStore(t)

	part := &models.Part{GradableEventID: 4242, Name: "orphan"}
	err := store.Parts.PutAll(context.Background(), []*models.Part{part})

	kind, ok := IsConstraint(err)
	require.True(t, ok)
	assert.Equal(t, KindForeignKey, kind)
	assert.Zero(t, part.ID)
	assert.Equal(t, int64(4242), part.GradableEventID)
}

func TestPutAllIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newAssignmentTree("hw1", "shared")
	second := newAssignmentTree("hw2", "shared")

	err := store.Assignments.PutAll(ctx, []*models.Assignment{first, second})
	kind, ok := IsConstraint(err)
	require.True(t, ok, "expected constraint error, got %v", err)
	assert.Equal(t, KindUnique, kind)
	assert.False(t, IsStorageFault(err))

	assert.Zero(t, first.ID)
	assert.Zero(t, first.GradableEvents[0].ID)
	assert.Zero(t, first.GradableEvents[0].Parts[0].Actions[0].ID)
	assert.Zero(t, second.ID)

	got, err := store.Assignments.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPutAllUpdatesAndAddsChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newAssignmentTree("hw1", "hw1-code")
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))
	originalID := a.ID

	a.Name = "Homework 1"
	a.GradableEvents[0].Parts[0].OutOf = 75
	a.GradableEvents[1].Parts = append(a.GradableEvents[1].Parts, &models.Part{Name: "demo", Order: 1, OutOf: 5})
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a, a}))

	assert.Equal(t, originalID, a.ID)
	assert.NotZero(t, a.GradableEvents[1].Parts[0].ID)

	got, err := store.Assignments.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0])
}

func TestUpdatingMissingRowFails(t *testing.T) {
	store := newTestStore(t)

	err := store.Assignments.PutAll(context.Background(), []*models.Assignment{{ID: 99, Name: "ghost"}})
	kind, ok := IsConstraint(err)
	require.True(t, ok)
	assert.Equal(t, KindMissingRow, kind)
}

func TestRemoveAssignmentCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newAssignmentTree("hw1", "hw1-code")
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))
	require.NoError(t, store.Assignments.RemoveAll(ctx, []*models.Assignment{a}))

	assert.Zero(t, a.ID)
	for _, ev := range a.GradableEvents {
		assert.Zero(t, ev.ID)
		assert.Zero(t, ev.AssignmentID)
		for _, p := range ev.Parts {
			assert.Zero(t, p.ID)
			for _, act := range p.Actions {
				assert.Zero(t, act.ID)
				for _, prop := range act.Properties {
					assert.Zero(t, prop.ID)
				}
			}
			for _, f := range p.InclusionFilters {
				assert.Zero(t, f.ID)
			}
			if p.GradingSheet != nil {
				assert.Zero(t, p.GradingSheet.ID)
				assert.Zero(t, p.GradingSheet.Sections[0].Subsections[0].Details[0].ID)
			}
		}
	}

	assignments, err := store.Assignments.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	events, err := store.GradableEvents.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
	parts, err := store.Parts.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, parts)
	actions, err := store.Actions.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
	props, err := store.ActionProperties.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, props)
	filters, err := store.InclusionFilters.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, filters)
	sheets, err := store.GradingSheets.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, sheets)

	var details int
	require.NoError(t, store.exec.db.Get(&details, "SELECT COUNT(*) FROM grading_sheet_details"))
	assert.Zero(t, details)
}

func TestRemoveUnpersistedIsNoop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	kept := newAssignmentTree("hw1", "hw1-code")
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{kept}))

	require.NoError(t, store.Assignments.RemoveAll(ctx, []*models.Assignment{newAssignmentTree("hw2", "hw2-code")}))
	require.NoError(t, store.Parts.RemoveAll(ctx, []*models.Part{{Name: "never saved"}}))

	got, err := store.Assignments.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRemovePartKeepsSiblings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newAssignmentTree("hw1", "hw1-code")
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))

	code := a.GradableEvents[0].Parts[0]
	require.NoError(t, store.Parts.RemoveAll(ctx, []*models.Part{code}))
	assert.Zero(t, code.ID)
	assert.Zero(t, code.Actions[0].ID)

	parts, err := store.Parts.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "design", parts[0].Name)
}
