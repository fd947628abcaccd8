package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Store is the persistence engine: one repository per entity family plus the grading
// ledger, all sharing a single executor. It assumes one writer at a time.
type Store struct {
	Assignments      *AssignmentRepository
	GradableEvents   *GradableEventRepository
	Parts            *PartRepository
	Actions          *ActionRepository
	ActionProperties *ActionPropertyRepository
	InclusionFilters *InclusionFilterRepository
	GradingSheets    *GradingSheetRepository
	Students         *StudentRepository
	TAs              *TARepository
	Groups           *GroupRepository
	Distributions    *DistributionRepository
	Grades           *GradeRepository
	Records          *RecordRepository
	Blacklist        *BlacklistRepository

	exec *executor
}

// NewStore wires every repository onto db. A nil observer disables operation metrics.
func NewStore(db *sqlx.DB, logger *zap.Logger, observer OperationObserver) *Store {
	exec := newExecutor(db, logger, observer)
	return &Store{
		Assignments:      newAssignmentRepository(exec),
		GradableEvents:   newGradableEventRepository(exec),
		Parts:            newPartRepository(exec),
		Actions:          newActionRepository(exec),
		ActionProperties: newActionPropertyRepository(exec),
		InclusionFilters: newInclusionFilterRepository(exec),
		GradingSheets:    newGradingSheetRepository(exec),
		Students:         newStudentRepository(exec),
		TAs:              newTARepository(exec),
		Groups:           newGroupRepository(exec),
		Distributions:    newDistributionRepository(exec),
		Grades:           newGradeRepository(exec),
		Records:          newRecordRepository(exec),
		Blacklist:        newBlacklistRepository(exec),
		exec:             exec,
	}
}

// resetOrder lists tables children first so deletes never trip a foreign key.
var resetOrder = []string{
	"exemptions",
	"extensions",
	"occurrences",
	"grade_records",
	"blacklist",
	"distributions",
	"group_members",
	"student_groups",
	"grading_sheet_details",
	"grading_sheet_subsections",
	"grading_sheet_sections",
	"grading_sheets",
	"inclusion_filters",
	"action_properties",
	"actions",
	"parts",
	"gradable_events",
	"assignments",
	"tas",
	"students",
}

// ResetDatabase deletes every row of every table in one transaction. Identities are not
// reused afterwards.
func (s *Store) ResetDatabase(ctx context.Context) error {
	return s.exec.inTx(ctx, "reset database", func(tx *sqlx.Tx, _ *commitHooks) error {
		for _, table := range resetOrder {
			if err := exec(ctx, tx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.exec.db.PingContext(ctx); err != nil {
		return &StorageFaultError{Op: "ping", Err: err}
	}
	return nil
}
