package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return NewStore(db, zap.NewNop(), nil)
}

func ptrFloat(v float64) *float64 { return &v }

func ptrTime(t time.Time) *time.Time { return &t }

func ptrDuration(d time.Duration) *time.Duration { return &d }

// newAssignmentTree builds an unsaved assignment touching every owned family.
func newAssignmentTree(name, quickName string) *models.Assignment {
	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	return &models.Assignment{
		Name:  name,
		Order: 1,
		GradableEvents: []*models.GradableEvent{
			{
				Name:      name + " handin",
				Order:     1,
				Directory: "/course/handin/" + name,
				Deadline: models.DeadlineInfo{
					Type:        models.DeadlineFixed,
					EarlyDate:   ptrTime(onTime.Add(-48 * time.Hour)),
					OnTimeDate:  ptrTime(onTime),
					LateDate:    ptrTime(onTime.Add(72 * time.Hour)),
					EarlyPoints: ptrFloat(2),
					LatePoints:  ptrFloat(-5),
				},
				Parts: []*models.Part{
					{
						Name:      "code",
						Order:     1,
						QuickName: quickName,
						OutOf:     80,
						Actions: []*models.Action{
							{
								Name:  "Run",
								Icon:  "run.png",
								Task:  "java:run",
								Order: 1,
								Properties: []*models.ActionProperty{
									{Key: "main", Value: "App"},
									{Key: "args", Value: "--fast"},
								},
							},
							{Name: "Print", Task: "print:code", Order: 2},
						},
						InclusionFilters: []*models.InclusionFilter{
							{Type: models.FilterDirectory, Path: "src"},
							{Type: models.FilterGlob, Path: "*.java"},
						},
						GradingSheet: &models.GradingSheet{
							Sections: []*models.GradingSheetSection{
								{
									Name:  "Functionality",
									Order: 1,
									Subsections: []*models.GradingSheetSubsection{
										{
											Text:    "Compiles",
											Order:   1,
											OutOf:   ptrFloat(10),
											Details: []*models.GradingSheetDetail{{Text: "no warnings", Order: 1}},
										},
									},
								},
								{Name: "Style", Order: 2, OutOf: ptrFloat(20)},
							},
						},
					},
					{Name: "design", Order: 2, OutOf: 20},
				},
			},
			{
				Name:  name + " demo",
				Order: 2,
				Deadline: models.DeadlineInfo{
					Type:       models.DeadlineVariable,
					OnTimeDate: ptrTime(onTime.Add(7 * 24 * time.Hour)),
					LatePoints: ptrFloat(-1),
					LatePeriod: ptrDuration(24 * time.Hour),
				},
			},
		},
	}
}

func newStudent(login string) *models.Student {
	return &models.Student{Login: login, FirstName: "First " + login, LastName: "Last", Email: login + "@example.edu", Enabled: true}
}

func newTA(login string, defaultGrader bool) *models.TA {
	return &models.TA{Login: login, FirstName: "TA", LastName: login, DefaultGrader: defaultGrader}
}

// gradingFixture persists one grouped assignment with two parts, two TAs, three students
// and two groups.
type gradingFixture struct {
	assignment *models.Assignment
	part       *models.Part
	otherPart  *models.Part
	event      *models.GradableEvent
	ta1, ta2   *models.TA
	students   []*models.Student
	g1, g2     *models.Group
}

func newGradingFixture(t *testing.T, store *Store) *gradingFixture {
	t.Helper()
	ctx := context.Background()

	a := newAssignmentTree("proj", "proj-code")
	a.HasGroups = true
	require.NoError(t, store.Assignments.PutAll(ctx, []*models.Assignment{a}))

	f := &gradingFixture{
		assignment: a,
		event:      a.GradableEvents[0],
		part:       a.GradableEvents[0].Parts[0],
		otherPart:  a.GradableEvents[0].Parts[1],
		ta1:        newTA("tone", true),
		ta2:        newTA("ttwo", false),
		students:   []*models.Student{newStudent("alice"), newStudent("bob"), newStudent("carol")},
	}
	require.NoError(t, store.TAs.PutAll(ctx, []*models.TA{f.ta1, f.ta2}))
	require.NoError(t, store.Students.PutAll(ctx, f.students))

	f.g1 = &models.Group{AssignmentID: a.ID, Name: "team-1", MemberIDs: []int64{f.students[0].ID, f.students[1].ID}}
	f.g2 = &models.Group{AssignmentID: a.ID, Name: "team-2", MemberIDs: []int64{f.students[2].ID}}
	require.NoError(t, store.Groups.PutAll(ctx, []*models.Group{f.g1, f.g2}))
	return f
}
