package service

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/repository"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
)

var loginPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// NewValidator returns a validator with the login tag registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return loginPattern.MatchString(fl.Field().String())
	})
	return v
}

// DataService is the cached facade over the store. It keeps a snapshot of assignments,
// students, TAs and groups; its own writes go through to the snapshot and Refresh picks up
// writes made elsewhere. Calls are serialized by an internal mutex.
type DataService struct {
	mu        sync.Mutex
	store     *repository.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	arena     *arena
}

// NewDataService constructs the facade. The snapshot is empty until Load or Refresh runs.
func NewDataService(store *repository.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DataService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataService{
		store:     store,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		arena:     newArena(nil),
	}
}

// Refresh re-reads the store and replaces the snapshot.
func (s *DataService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

// Load warms the snapshot from the snapshot cache, falling back to the store.
func (s *DataService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	hit, err := s.cache.Get(ctx, SnapshotCacheKey, &snap)
	if err == nil && hit {
		s.arena = newArena(&snap)
		s.logger.Info("snapshot loaded from cache",
			zap.Int("assignments", len(snap.Assignments)),
			zap.Int("students", len(snap.Students)),
			zap.Time("loaded_at", snap.LoadedAt),
		)
		return nil
	}
	return s.refresh(ctx)
}

func (s *DataService) refresh(ctx context.Context) error {
	assignments, err := s.store.Assignments.GetAll(ctx)
	if err != nil {
		return storeError("refresh", "assignments", err)
	}
	students, err := s.store.Students.GetAll(ctx)
	if err != nil {
		return storeError("refresh", "students", err)
	}
	tas, err := s.store.TAs.GetAll(ctx)
	if err != nil {
		return storeError("refresh", "tas", err)
	}
	groups, err := s.store.Groups.GetAll(ctx)
	if err != nil {
		return storeError("refresh", "groups", err)
	}

	snap := &Snapshot{Assignments: assignments, Students: students, TAs: tas, Groups: groups, LoadedAt: s.now()}
	s.arena = newArena(snap)
	_ = s.cache.Set(ctx, SnapshotCacheKey, snap, 0)

	s.logger.Info("snapshot refreshed",
		zap.Int("assignments", len(assignments)),
		zap.Int("students", len(students)),
		zap.Int("tas", len(tas)),
		zap.Int("groups", len(groups)),
	)
	return nil
}

// invalidate drops the cached snapshot after a write so other instances reload from the store.
func (s *DataService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, SnapshotCacheKey)
}

// LoadedAt reports when the snapshot was last read from the store.
func (s *DataService) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.snap.LoadedAt
}

// Ready checks that the store is reachable.
func (s *DataService) Ready(ctx context.Context) error {
	return storeError("ping", "store", s.store.Ping(ctx))
}

// ResetDatabase clears every table and empties the snapshot.
func (s *DataService) ResetDatabase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ResetDatabase(ctx); err != nil {
		return storeError("reset database", "store", err)
	}
	s.arena = newArena(&Snapshot{LoadedAt: s.now()})
	s.invalidate(ctx)
	s.logger.Warn("database reset")
	return nil
}

// Assignments returns copies of every assignment ordered by rank.
func (s *DataService) Assignments() []*models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Assignment, 0, len(s.arena.snap.Assignments))
	for _, a := range s.arena.snap.Assignments {
		out = append(out, a.Clone())
	}
	return out
}

// Assignment returns a copy of one assignment.
func (s *DataService) Assignment(id int64) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.arena.assignments[id]
	if !ok {
		return nil, notFound("assignment", id)
	}
	return a.Clone(), nil
}

// GradableEvent returns a copy of one gradable event.
func (s *DataService) GradableEvent(id int64) (*models.GradableEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.arena.events[id]
	if !ok {
		return nil, notFound("gradable event", id)
	}
	return ev.Clone(), nil
}

// Part returns a copy of one part.
func (s *DataService) Part(id int64) (*models.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.arena.parts[id]
	if !ok {
		return nil, notFound("part", id)
	}
	return p.Clone(), nil
}

// AssignmentForPart returns a copy of the assignment that owns the part.
func (s *DataService) AssignmentForPart(partID int64) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.arena.partAssignment[partID]
	if !ok {
		return nil, notFound("part", partID)
	}
	return s.arena.assignments[id].Clone(), nil
}

// PutAssignments persists assignment trees. Identities are written back onto the given
// entities. Children missing from a given tree are kept in the store, so the snapshot takes
// the assignments as stored rather than as given.
func (s *DataService) PutAssignments(ctx context.Context, assignments []*models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assignments {
		if a == nil || a.Name == "" {
			return appErrors.Clone(appErrors.ErrValidation, "assignment name is required")
		}
	}
	if err := s.store.Assignments.PutAll(ctx, assignments); err != nil {
		return storeError("put assignments", "assignment", err)
	}
	s.invalidate(ctx)
	stored, err := s.store.Assignments.GetAll(ctx)
	if err != nil {
		s.logger.Warn("assignments written but snapshot reload failed", zap.Error(err))
		return storeError("reload assignments", "assignment", err)
	}
	s.arena.replaceAssignments(stored)
	return nil
}

// RemoveAssignments deletes assignments with everything they own, including their groups.
func (s *DataService) RemoveAssignments(ctx context.Context, assignments []*models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := idSet(assignments, func(a *models.Assignment) int64 { return a.ID })
	if err := s.store.Assignments.RemoveAll(ctx, assignments); err != nil {
		return storeError("remove assignments", "assignment", err)
	}
	s.arena.dropAssignments(ids)
	s.invalidate(ctx)
	return nil
}

// Students returns copies of every student ordered by login.
func (s *DataService) Students() []*models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.students(false)
}

// EnabledStudents returns copies of the enabled students ordered by login.
func (s *DataService) EnabledStudents() []*models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.students(true)
}

func (s *DataService) students(enabledOnly bool) []*models.Student {
	out := make([]*models.Student, 0, len(s.arena.snap.Students))
	for _, st := range s.arena.snap.Students {
		if enabledOnly && !st.Enabled {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	return out
}

// StudentByLogin returns a copy of the student with the login.
func (s *DataService) StudentByLogin(login string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.arena.studentLogins[login]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %q not found", login))
	}
	cp := *s.arena.students[id]
	return &cp, nil
}

// AddStudent validates and persists a student. BypassValidity skips the login format check
// and is reserved for tests and administrative tools.
func (s *DataService) AddStudent(ctx context.Context, student *models.Student, mode models.ValidityCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateStudent(student, mode); err != nil {
		return err
	}
	if err := s.store.Students.PutAll(ctx, []*models.Student{student}); err != nil {
		return storeError("add student", student.Login, err)
	}
	s.arena.upsertStudents([]*models.Student{student})
	s.invalidate(ctx)
	return nil
}

// UpdateStudents persists changed student records. The mode applies as in AddStudent.
func (s *DataService) UpdateStudents(ctx context.Context, students []*models.Student, mode models.ValidityCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range students {
		if err := s.validateStudent(st, mode); err != nil {
			return err
		}
	}
	if err := s.store.Students.PutAll(ctx, students); err != nil {
		return storeError("update students", "student", err)
	}
	s.arena.upsertStudents(students)
	s.invalidate(ctx)
	return nil
}

func (s *DataService) validateStudent(student *models.Student, mode models.ValidityCheck) error {
	if student == nil {
		return appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	var err error
	if mode == models.BypassValidity {
		err = s.validator.StructExcept(student, "Login")
	} else {
		err = s.validator.Struct(student)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student")
	}
	return nil
}

// RemoveStudents deletes students with their memberships and blacklist entries. Groups left
// without members are deleted too.
func (s *DataService) RemoveStudents(ctx context.Context, students []*models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := idSet(students, func(st *models.Student) int64 { return st.ID })
	if err := s.store.Students.RemoveAll(ctx, students); err != nil {
		return storeError("remove students", "student", err)
	}
	s.arena.dropStudents(ids)
	s.invalidate(ctx)
	return nil
}

// TAs returns copies of every TA ordered by login.
func (s *DataService) TAs() []*models.TA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TA, 0, len(s.arena.snap.TAs))
	for _, ta := range s.arena.snap.TAs {
		cp := *ta
		out = append(out, &cp)
	}
	return out
}

// TAByLogin returns a copy of the TA with the login.
func (s *DataService) TAByLogin(login string) (*models.TA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.arena.taLogins[login]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("ta %q not found", login))
	}
	cp := *s.arena.tas[id]
	return &cp, nil
}

// DefaultGraders returns the TAs flagged as default graders.
func (s *DataService) DefaultGraders() []*models.TA {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TA
	for _, ta := range s.arena.snap.TAs {
		if ta.DefaultGrader {
			cp := *ta
			out = append(out, &cp)
		}
	}
	return out
}

// PutTAs validates and persists TAs.
func (s *DataService) PutTAs(ctx context.Context, tas []*models.TA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ta := range tas {
		if err := s.validator.Struct(ta); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ta")
		}
	}
	if err := s.store.TAs.PutAll(ctx, tas); err != nil {
		return storeError("put tas", "ta", err)
	}
	s.arena.upsertTAs(tas)
	s.invalidate(ctx)
	return nil
}

// RemoveTAs deletes TAs. Their distribution and blacklist rows go with them; grade records
// keep the score without a recording TA.
func (s *DataService) RemoveTAs(ctx context.Context, tas []*models.TA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := idSet(tas, func(ta *models.TA) int64 { return ta.ID })
	if err := s.store.TAs.RemoveAll(ctx, tas); err != nil {
		return storeError("remove tas", "ta", err)
	}
	s.arena.dropTAs(ids)
	s.invalidate(ctx)
	return nil
}

// storeError maps store failures onto the domain error type, keeping the store error as
// the cause.
func storeError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var e *appErrors.Error
	if kind, ok := repository.IsConstraint(err); ok {
		e = appErrors.Wrap(err, appErrors.ErrConstraint.Code, appErrors.ErrConstraint.Status, fmt.Sprintf("constraint %s violated", kind))
	} else if repository.IsStorageFault(err) {
		e = appErrors.Wrap(err, appErrors.ErrStorageFault.Code, appErrors.ErrStorageFault.Status, appErrors.ErrStorageFault.Message)
	} else {
		e = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	e.Op = op
	e.Entity = entity
	return e
}

func notFound(entity string, id int64) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %d not found", entity, id))
}

func idSet[T any](items []*T, id func(*T) int64) map[int64]bool {
	ids := make(map[int64]bool, len(items))
	for _, item := range items {
		if item != nil && id(item) != 0 {
			ids[id(item)] = true
		}
	}
	return ids
}
