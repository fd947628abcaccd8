package repository

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/pkg/database"
)

// openRapidStore opens a fresh in-memory store for one generated case.
func openRapidStore(t *rapid.T) (*Store, func()) {
	db, err := database.NewSQLite(database.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))
	return NewStore(db, zap.NewNop(), nil), func() { db.Close() }
}

var groupNames = []string{"red", "blue", "green", "taken"}

func TestGroupBatchesKeepMembershipInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store, closeDB := openRapidStore(t)
		defer closeDB()
		ctx := context.Background()

		a := &models.Assignment{Name: "proj", HasGroups: true}
		require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))
		n := rapid.IntRange(2, 6).Draw(t, "students")
		students := make([]*models.Student, n)
		for i := range students {
			students[i] = newStudent(fmt.Sprintf("s%d", i))
		}
		require.NoError(t, store.Students.PutAll(ctx, students))

		// an earlier batch may already hold student 0 under the name "taken"
		existing := 0
		if rapid.Bool().Draw(t, "existing") {
			require.NoError(t, store.Groups.PutAll(ctx, []*models.Group{
				{AssignmentID: a.ID, Name: "taken", MemberIDs: []int64{students[0].ID}},
			}))
			existing = 1
		}

		size := rapid.IntRange(1, 4).Draw(t, "groups")
		batch := make([]*models.Group, size)
		names := make(map[string]bool)
		grouped := make(map[int]bool)
		valid := true
		for i := range batch {
			name := rapid.SampledFrom(groupNames).Draw(t, fmt.Sprintf("name%d", i))
			members := rapid.SliceOfNDistinct(rapid.IntRange(0, n-1), 1, 3, rapid.ID[int]).Draw(t, fmt.Sprintf("members%d", i))

			if names[name] || (existing == 1 && name == "taken") {
				valid = false
			}
			names[name] = true
			g := &models.Group{AssignmentID: a.ID, Name: name}
			for _, m := range members {
				if grouped[m] || (existing == 1 && m == 0) {
					valid = false
				}
				grouped[m] = true
				g.MemberIDs = append(g.MemberIDs, students[m].ID)
			}
			batch[i] = g
		}

		err := store.Groups.PutAll(ctx, batch)
		stored, loadErr := store.Groups.ByAssignment(ctx, a.ID)
		require.NoError(t, loadErr)

		if !valid {
			kind, ok := IsConstraint(err)
			require.True(t, ok, "expected constraint error, got %v", err)
			assert.Contains(t, []ConstraintKind{KindDuplicateGroupName, KindStudentAlreadyGrouped}, kind)
			assert.Len(t, stored, existing)
			for _, g := range batch {
				assert.Zero(t, g.ID)
			}
			return
		}

		require.NoError(t, err)
		assert.Len(t, stored, existing+size)
		owner := make(map[int64]int64)
		seenNames := make(map[string]bool)
		for _, g := range stored {
			assert.False(t, seenNames[g.Name], "name %q stored twice", g.Name)
			seenNames[g.Name] = true
			for _, id := range g.MemberIDs {
				prev, dup := owner[id]
				assert.False(t, dup, "student %d in groups %d and %d", id, prev, g.ID)
				owner[id] = g.ID
			}
		}
		for _, g := range batch {
			assert.NotZero(t, g.ID)
		}
	})
}

func TestGeneratedDistributionsApplyWhollyOrNotAtAll(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store, closeDB := openRapidStore(t)
		defer closeDB()
		ctx := context.Background()

		a := newAssignmentTree("proj", "proj-code")
		a.HasGroups = true
		require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))
		parts := []int64{a.GradableEvents[0].Parts[0].ID, a.GradableEvents[0].Parts[1].ID}
		tas := []*models.TA{newTA("tone", true), newTA("ttwo", false)}
		require.NoError(t, store.TAs.PutAll(ctx, tas))
		students := []*models.Student{newStudent("alice"), newStudent("bob"), newStudent("carol")}
		require.NoError(t, store.Students.PutAll(ctx, students))
		groups := make([]*models.Group, len(students))
		for i, st := range students {
			groups[i] = &models.Group{AssignmentID: a.ID, Name: st.Login, MemberIDs: []int64{st.ID}}
		}
		require.NoError(t, store.Groups.PutAll(ctx, groups))

		before := models.Distribution{
			parts[0]: {tas[0].ID: {groups[0].ID}},
			parts[1]: {tas[1].ID: {groups[1].ID, groups[2].ID}},
		}
		require.NoError(t, store.Distributions.SetDistribution(ctx, before))

		taIDs := []int64{tas[0].ID, tas[1].ID, 9999}
		groupIDs := []int64{groups[0].ID, groups[1].ID, groups[2].ID, 8888}
		next := make(models.Distribution)
		valid := true
		for _, partID := range parts {
			if !rapid.Bool().Draw(t, fmt.Sprintf("touch%d", partID)) {
				continue
			}
			next[partID] = make(map[int64][]int64)
			graded := make(map[int64]bool)
			triples := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("triples%d", partID))
			for i := 0; i < triples; i++ {
				taID := rapid.SampledFrom(taIDs).Draw(t, fmt.Sprintf("ta%d.%d", partID, i))
				groupID := rapid.SampledFrom(groupIDs).Draw(t, fmt.Sprintf("group%d.%d", partID, i))
				if taID == 9999 || groupID == 8888 || graded[groupID] {
					valid = false
				}
				graded[groupID] = true
				next[partID][taID] = append(next[partID][taID], groupID)
			}
		}

		err := store.Distributions.SetDistribution(ctx, next)
		want := before
		if valid {
			require.NoError(t, err)
			want = models.Distribution{}
			for partID, byTA := range before {
				want[partID] = byTA
			}
			for partID, byTA := range next {
				want[partID] = byTA
			}
		} else {
			_, ok := IsConstraint(err)
			require.True(t, ok, "expected constraint error, got %v", err)
		}

		for _, partID := range parts {
			got, err := store.Distributions.GetDistribution(ctx, partID)
			require.NoError(t, err)
			assert.Equal(t, normalizeDistribution(want[partID]), normalizeDistribution(got), "part %d", partID)
		}
	})
}

func TestGeneratedSyntheticGroupsRollBackWithDistribution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store, closeDB := openRapidStore(t)
		defer closeDB()
		ctx := context.Background()

		a := newAssignmentTree("proj", "proj-code")
		require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))
		partID := a.GradableEvents[0].Parts[0].ID
		ta := newTA("tone", true)
		require.NoError(t, store.TAs.PutAll(ctx, []*models.TA{ta}))

		n := rapid.IntRange(1, 4).Draw(t, "students")
		unsaved := make([]*models.Group, n)
		for i := range unsaved {
			st := newStudent(fmt.Sprintf("s%d", i))
			require.NoError(t, store.Students.PutAll(ctx, []*models.Student{st}))
			unsaved[i] = &models.Group{AssignmentID: a.ID, Name: st.Login, MemberIDs: []int64{st.ID}}
		}
		taID := ta.ID
		broken := rapid.Bool().Draw(t, "broken")
		if broken {
			taID = 9999
		}

		err := store.SetDistributionWithGroups(ctx, map[int64]map[int64][]*models.Group{partID: {taID: unsaved}})
		stored, loadErr := store.Groups.ByAssignment(ctx, a.ID)
		require.NoError(t, loadErr)

		if broken {
			require.Error(t, err)
			assert.Empty(t, stored)
			for _, g := range unsaved {
				assert.Zero(t, g.ID)
			}
			return
		}
		require.NoError(t, err)
		assert.Len(t, stored, n)
		ids, err := store.Distributions.AssignedGroupsFor(ctx, partID, ta.ID)
		require.NoError(t, err)
		assert.Len(t, ids, n)
	})
}

// normalizeDistribution drops empty TA entries and sorts each group list.
func normalizeDistribution(byTA map[int64][]int64) map[int64][]int64 {
	out := make(map[int64][]int64)
	for taID, ids := range byTA {
		if len(ids) == 0 {
			continue
		}
		cp := append([]int64(nil), ids...)
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		out[taID] = cp
	}
	return out
}
