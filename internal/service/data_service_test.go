package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/repository"
	"github.com/noah-isme/gradestore/pkg/database"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	gets    int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if key == pattern || (prefix != pattern && strings.HasPrefix(key, prefix)) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.NewSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return repository.NewStore(db, zap.NewNop(), nil)
}

var testNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestDataService(store *repository.Store, cache *CacheService) *DataService {
	svc := NewDataService(store, cache, nil, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func testStudent(login string) *models.Student {
	return &models.Student{Login: login, FirstName: strings.ToUpper(login[:1]) + login[1:], LastName: "Doe", Email: login + "@example.edu", Enabled: true}
}

// seedCourse stores one assignment with a single part, the given students and two TAs.
func seedCourse(t *testing.T, svc *DataService, hasGroups bool, logins ...string) (*models.Assignment, []*models.Student, []*models.TA) {
	t.Helper()
	ctx := context.Background()

	asgn := &models.Assignment{
		Name:      "hw1",
		Order:     1,
		HasGroups: hasGroups,
		GradableEvents: []*models.GradableEvent{{
			Name:     "handin",
			Deadline: models.DeadlineInfo{Type: models.DeadlineNone},
			Parts:    []*models.Part{{Name: "code", OutOf: 100}},
		}},
	}
	require.NoError(t, svc.PutAssignments(ctx, []*models.Assignment{asgn}))

	var students []*models.Student
	for _, login := range logins {
		st := testStudent(login)
		require.NoError(t, svc.AddStudent(ctx, st, models.CheckValidity))
		students = append(students, st)
	}

	tas := []*models.TA{
		{Login: "tone", FirstName: "Tess", Admin: true, DefaultGrader: true},
		{Login: "ttwo", FirstName: "Theo"},
	}
	require.NoError(t, svc.PutTAs(ctx, tas))
	return asgn, students, tas
}

func TestSyntheticGroupsForUngroupedAssignment(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	asgn, students, _ := seedCourse(t, svc, false, "bob", "alice")

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alice", groups[0].Name)
	assert.Equal(t, []int64{students[1].ID}, groups[0].MemberIDs)
	assert.Equal(t, "bob", groups[1].Name)
	assert.Equal(t, []int64{students[0].ID}, groups[1].MemberIDs)
	for _, g := range groups {
		assert.Zero(t, g.ID)
		assert.Equal(t, asgn.ID, g.AssignmentID)
	}

	stored, err := svc.store.Groups.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGroupedAssignmentReturnsOnlyStoredGroups(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, _ := seedCourse(t, svc, true, "alice", "bob")

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	team := &models.Group{AssignmentID: asgn.ID, Name: "team", MemberIDs: []int64{students[1].ID, students[0].ID}}
	require.NoError(t, svc.AddGroups(ctx, []*models.Group{team}))

	groups, err = svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, team.ID, groups[0].ID)
	assert.Equal(t, []int64{students[0].ID, students[1].ID}, groups[0].MemberIDs)

	_, err = svc.Group(asgn.ID, 9999)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDisabledStudentsAndSyntheticGroups(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, _ := seedCourse(t, svc, false, "alice", "bob")

	bob := students[1]
	bob.Enabled = false
	require.NoError(t, svc.UpdateStudents(ctx, []*models.Student{bob}, models.CheckValidity))

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "alice", groups[0].Name)

	g, err := svc.Group(asgn.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", g.Name)
	assert.Len(t, svc.EnabledStudents(), 1)
	assert.Len(t, svc.Students(), 2)
}

func TestAddStudentValidation(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()

	bad := testStudent("alice")
	bad.Login = "Alice Smith"
	err := svc.AddStudent(ctx, bad, models.CheckValidity)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, bad.ID)

	require.NoError(t, svc.AddStudent(ctx, bad, models.BypassValidity))
	assert.NotZero(t, bad.ID)

	found, err := svc.StudentByLogin("Alice Smith")
	require.NoError(t, err)
	assert.Equal(t, bad.ID, found.ID)

	badEmail := testStudent("carol")
	badEmail.Email = "not-an-email"
	err = svc.AddStudent(ctx, badEmail, models.BypassValidity)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUpdateStudentsValidityMode(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()

	legacy := testStudent("alice")
	legacy.Login = "Alice Smith"
	require.NoError(t, svc.AddStudent(ctx, legacy, models.BypassValidity))

	legacy.Enabled = false
	err := svc.UpdateStudents(ctx, []*models.Student{legacy}, models.CheckValidity)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, svc.EnabledStudents(), 1)

	require.NoError(t, svc.UpdateStudents(ctx, []*models.Student{legacy}, models.BypassValidity))
	assert.Empty(t, svc.EnabledStudents())

	legacy.Email = "not-an-email"
	err = svc.UpdateStudents(ctx, []*models.Student{legacy}, models.BypassValidity)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.UpdateStudents(ctx, []*models.Student{nil}, models.CheckValidity)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWritesAreVisibleWithoutRefresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	writer := newTestDataService(store, nil)
	reader := newTestDataService(store, nil)
	require.NoError(t, reader.Refresh(ctx))

	asgn, _, _ := seedCourse(t, writer, false, "alice")
	got, err := writer.Assignment(asgn.ID)
	require.NoError(t, err)
	assert.Equal(t, asgn, got)

	part := asgn.GradableEvents[0].Parts[0]
	owner, err := writer.AssignmentForPart(part.ID)
	require.NoError(t, err)
	assert.Equal(t, asgn.ID, owner.ID)

	assert.Empty(t, reader.Assignments())
	_, err = reader.StudentByLogin("alice")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, reader.Refresh(ctx))
	assert.Equal(t, []*models.Assignment{asgn}, reader.Assignments())
	ta, err := reader.TAByLogin("tone")
	require.NoError(t, err)
	assert.True(t, ta.Admin)
	assert.Equal(t, testNow, reader.LoadedAt())
}

func TestPutAssignmentsWithoutChildrenKeepsSnapshotTree(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, _ := seedCourse(t, svc, false, "alice")
	ev := asgn.GradableEvents[0]
	part := ev.Parts[0]

	renamed := &models.Assignment{ID: asgn.ID, Name: "hw1-final", Order: asgn.Order}
	require.NoError(t, svc.PutAssignments(ctx, []*models.Assignment{renamed}))

	got, err := svc.Assignment(asgn.ID)
	require.NoError(t, err)
	assert.Equal(t, "hw1-final", got.Name)
	require.Len(t, got.GradableEvents, 1)

	_, err = svc.GradableEvent(ev.ID)
	require.NoError(t, err)
	p, err := svc.Part(part.ID)
	require.NoError(t, err)
	assert.Equal(t, "code", p.Name)
	owner, err := svc.AssignmentForPart(part.ID)
	require.NoError(t, err)
	assert.Equal(t, asgn.ID, owner.ID)
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	asgn, _, _ := seedCourse(t, svc, false, "alice")

	asgn.Name = "mutated by caller"
	got, err := svc.Assignment(asgn.ID)
	require.NoError(t, err)
	assert.Equal(t, "hw1", got.Name)

	got.GradableEvents[0].Parts[0].OutOf = 1
	part, err := svc.Part(asgn.GradableEvents[0].Parts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), part.OutOf)
}

func TestAssignGraderPersistsSingletonGroup(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice", "bob")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	alice := groups[0]

	require.NoError(t, svc.AssignGrader(ctx, part.ID, alice, tas[0].ID))
	assert.NotZero(t, alice.ID)

	assigned, err := svc.AssignedGroups(ctx, part.ID, tas[0].ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "alice", assigned[0].Name)

	groups, err = svc.Groups(asgn.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, groups[0].ID)
	assert.Zero(t, groups[1].ID)

	require.NoError(t, svc.AssignGrader(ctx, part.ID, alice, tas[1].ID))
	assigned, err = svc.AssignedGroups(ctx, part.ID, tas[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, assigned)
	assert.Empty(t, assigned)

	dist, err := svc.Distribution(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{tas[1].ID: {alice.ID}}, dist)
}

func TestSetDistributionThroughFacade(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice", "bob", "carol")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)

	err = svc.SetDistribution(ctx, map[int64]map[int64][]*models.Group{
		part.ID: {
			tas[0].ID: {groups[0], groups[1]},
			tas[1].ID: {groups[2]},
		},
	})
	require.NoError(t, err)

	all, err := svc.AssignedGroups(ctx, part.ID, models.Unassigned)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	second, err := svc.AssignedGroups(ctx, part.ID, tas[1].ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "carol", second[0].Name)
}

func TestFailedDistributionLeavesNoGroupsBehind(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice", "bob")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)

	err = svc.SetDistribution(ctx, map[int64]map[int64][]*models.Group{
		part.ID: {9999: {groups[0], groups[1]}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConstraint))
	for _, g := range groups {
		assert.Zero(t, g.ID)
	}
	stored, err := svc.store.Groups.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.NoError(t, svc.SetEarned(ctx, groups[0], part.ID, tas[0].ID, nil, false))
	assert.NotZero(t, groups[0].ID)
}

func TestUnsavedCopyResolvesToStoredGroup(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, tas := seedCourse(t, svc, false, "alice")
	part := asgn.GradableEvents[0].Parts[0]

	first, err := svc.Group(asgn.ID, students[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.AssignGrader(ctx, part.ID, first, tas[0].ID))
	require.NotZero(t, first.ID)

	// built before the first write, so it still has no identity
	stale := singletonGroup(asgn.ID, students[0])
	earned := 70.0
	require.NoError(t, svc.SetEarned(ctx, stale, part.ID, tas[0].ID, &earned, false))
	assert.Equal(t, first.ID, stale.ID)

	stored, err := svc.store.Groups.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSetDistributionRejectsNilGroup(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		err = svc.SetDistribution(ctx, map[int64]map[int64][]*models.Group{
			part.ID: {tas[0].ID: {groups[0], nil}},
		})
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, groups[0].ID)

	dist, err := svc.Distribution(ctx, part.ID)
	require.NoError(t, err)
	assert.Empty(t, dist)
}

func TestFacadeWrapsConstraintViolations(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, _ := seedCourse(t, svc, true, "alice", "bob")

	first := &models.Group{AssignmentID: asgn.ID, Name: "one", MemberIDs: []int64{students[0].ID}}
	require.NoError(t, svc.AddGroups(ctx, []*models.Group{first}))

	fresh := &models.Group{AssignmentID: asgn.ID, Name: "two", MemberIDs: []int64{students[1].ID}}
	clash := &models.Group{AssignmentID: asgn.ID, Name: "three", MemberIDs: []int64{students[0].ID}}
	err := svc.AddGroups(ctx, []*models.Group{fresh, clash})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConstraint.Code, appErr.Code)
	assert.Equal(t, "add groups", appErr.Op)
	kind, ok := repository.IsConstraint(err)
	require.True(t, ok)
	assert.Equal(t, repository.KindStudentAlreadyGrouped, kind)

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Zero(t, fresh.ID)

	err = svc.AddGroups(ctx, []*models.Group{{AssignmentID: asgn.ID, Name: "none"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.AddGroups(ctx, []*models.Group{{AssignmentID: 777, Name: "lost", MemberIDs: []int64{students[1].ID}}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestBlacklistUnassignsGroups(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, tas := seedCourse(t, svc, false, "alice", "bob")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AssignGrader(ctx, part.ID, groups[0], tas[0].ID))
	require.NoError(t, svc.AssignGrader(ctx, part.ID, groups[1], tas[0].ID))

	require.NoError(t, svc.Blacklist(ctx, tas[0].ID, []int64{students[0].ID}))
	require.NoError(t, svc.Blacklist(ctx, tas[0].ID, []int64{students[0].ID}))

	listed, err := svc.BlacklistFor(ctx, tas[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{students[0].ID}, listed)

	assigned, err := svc.AssignedGroups(ctx, part.ID, tas[0].ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "bob", assigned[0].Name)

	require.NoError(t, svc.Unblacklist(ctx, tas[1].ID, []int64{students[1].ID}))
	require.NoError(t, svc.Unblacklist(ctx, tas[0].ID, []int64{students[0].ID}))
	all, err := svc.AllBlacklisted(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRemoveStudentsUpdatesSnapshot(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, _ := seedCourse(t, svc, true, "alice", "bob")

	solo := &models.Group{AssignmentID: asgn.ID, Name: "solo", MemberIDs: []int64{students[0].ID}}
	pair := &models.Group{AssignmentID: asgn.ID, Name: "pair", MemberIDs: []int64{students[1].ID}}
	require.NoError(t, svc.AddGroups(ctx, []*models.Group{solo, pair}))

	require.NoError(t, svc.RemoveStudents(ctx, []*models.Student{students[0]}))

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "pair", groups[0].Name)

	require.NoError(t, svc.Refresh(ctx))
	groups, err = svc.Groups(asgn.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Len(t, svc.Students(), 1)
}

func TestRemoveAssignmentsDropsGroupsFromSnapshot(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, students, _ := seedCourse(t, svc, true, "alice")
	require.NoError(t, svc.AddGroups(ctx, []*models.Group{{AssignmentID: asgn.ID, Name: "a", MemberIDs: []int64{students[0].ID}}}))

	id := asgn.ID
	require.NoError(t, svc.RemoveAssignments(ctx, []*models.Assignment{asgn}))
	assert.Zero(t, asgn.ID)
	assert.Empty(t, svc.Assignments())

	_, err := svc.Groups(id)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRemoveTAsKeepsGrades(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice")
	part := asgn.GradableEvents[0].Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	earned := 88.5
	require.NoError(t, svc.SetEarned(ctx, groups[0], part.ID, tas[1].ID, &earned, true))

	require.NoError(t, svc.RemoveTAs(ctx, []*models.TA{tas[1]}))
	assert.Len(t, svc.TAs(), 1)
	assert.Equal(t, []*models.TA{tas[0]}, svc.DefaultGraders())

	rec, err := svc.Earned(ctx, groups[0].ID, part.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 88.5, *rec.Earned)
	assert.Equal(t, models.Unassigned, rec.TAID)
	assert.True(t, rec.RecordedAt.Equal(testNow))
}

func TestGradeAndRecordPassThrough(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	asgn, _, tas := seedCourse(t, svc, false, "alice", "bob")
	ev := asgn.GradableEvents[0]
	part := ev.Parts[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	for _, g := range groups {
		require.NoError(t, svc.SetEarned(ctx, g, part.ID, tas[0].ID, nil, false))
	}
	ids := []int64{groups[0].ID, groups[1].ID}

	require.NoError(t, svc.SetEarnedSubmitted(ctx, part.ID, ids, true))
	recs, err := svc.EarnedForGroups(ctx, part.ID, ids)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[ids[0]].Submitted)
	assert.Nil(t, recs[ids[1]].Earned)

	require.NoError(t, svc.SetOccurrences(ctx, []models.Occurrence{{GradableEventID: ev.ID, GroupID: ids[0], OccurredAt: testNow.Add(-time.Hour)}}))
	occ, err := svc.Occurrences(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, occ[ids[0]].RecordedAt.Equal(testNow))
	require.NoError(t, svc.DeleteOccurrences(ctx, ev.ID, ids))
	occ, err = svc.Occurrences(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, occ)

	require.NoError(t, svc.SetExtensions(ctx, []models.Extension{{GradableEventID: ev.ID, GroupID: ids[1], OnTime: testNow.Add(48 * time.Hour)}}))
	ext, err := svc.Extensions(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, ext, 1)
	require.NoError(t, svc.DeleteExtensions(ctx, ev.ID, []int64{ids[1]}))

	require.NoError(t, svc.GrantExemptions(ctx, []models.Exemption{{PartID: part.ID, GroupID: ids[0], Note: "medical"}}))
	ex, err := svc.Exemptions(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, "medical", ex[ids[0]].Note)
	require.NoError(t, svc.RemoveExemptions(ctx, part.ID, []int64{ids[0]}))
	ex, err = svc.Exemptions(ctx, part.ID)
	require.NoError(t, err)
	assert.Empty(t, ex)
}

func TestDeductionUsesHandinAndExtension(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()

	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	perDay := -5.0
	asgn := &models.Assignment{
		Name: "late",
		GradableEvents: []*models.GradableEvent{{
			Name:     "handin",
			Deadline: models.DeadlineInfo{Type: models.DeadlineVariable, OnTimeDate: &onTime, LatePoints: &perDay},
			Parts:    []*models.Part{{Name: "all", OutOf: 60}},
		}},
	}
	require.NoError(t, svc.PutAssignments(ctx, []*models.Assignment{asgn}))
	for _, login := range []string{"alice", "bob"} {
		require.NoError(t, svc.AddStudent(ctx, testStudent(login), models.CheckValidity))
	}
	ev := asgn.GradableEvents[0]

	groups, err := svc.Groups(asgn.ID)
	require.NoError(t, err)
	require.NoError(t, svc.AddGroups(ctx, groups))

	handin := onTime.Add(3*24*time.Hour - time.Hour)
	require.NoError(t, svc.SetOccurrences(ctx, []models.Occurrence{
		{GradableEventID: ev.ID, GroupID: groups[0].ID, OccurredAt: handin},
		{GradableEventID: ev.ID, GroupID: groups[1].ID, OccurredAt: handin},
	}))
	require.NoError(t, svc.SetExtensions(ctx, []models.Extension{{GradableEventID: ev.ID, GroupID: groups[1].ID, OnTime: onTime.Add(4 * 24 * time.Hour)}}))

	d, err := svc.Deduction(ctx, ev.ID, groups[0].ID, false)
	require.NoError(t, err)
	assert.InDelta(t, -15, d, 1e-9)

	d, err = svc.Deduction(ctx, ev.ID, groups[1].ID, true)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)

	_, err = svc.Deduction(ctx, ev.ID, 4242, false)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLoadPrefersSnapshotCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	first := newTestDataService(store, cache)
	seedCourse(t, first, false, "alice")
	require.NoError(t, first.Refresh(ctx))
	require.Contains(t, repo.entries, SnapshotCacheKey)

	// out-of-band write the cache does not know about
	require.NoError(t, store.Students.PutAll(ctx, []*models.Student{testStudent("zed")}))

	second := newTestDataService(store, cache)
	require.NoError(t, second.Load(ctx))
	assert.Len(t, second.Students(), 1)
	assert.Len(t, second.Assignments(), 1)

	require.NoError(t, second.Refresh(ctx))
	assert.Len(t, second.Students(), 2)

	require.NoError(t, first.AddStudent(ctx, testStudent("yves"), models.CheckValidity))
	assert.NotContains(t, repo.entries, SnapshotCacheKey)

	third := newTestDataService(store, cache)
	require.NoError(t, third.Load(ctx))
	assert.Len(t, third.Students(), 3)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestResetDatabaseEmptiesSnapshot(t *testing.T) {
	svc := newTestDataService(newTestStore(t), nil)
	ctx := context.Background()
	seedCourse(t, svc, false, "alice")

	require.NoError(t, svc.ResetDatabase(ctx))
	assert.Empty(t, svc.Assignments())
	assert.Empty(t, svc.Students())
	assert.Empty(t, svc.TAs())
	require.NoError(t, svc.Ready(ctx))
}
