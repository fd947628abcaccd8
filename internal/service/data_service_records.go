package service

import (
	"context"

	"github.com/noah-isme/gradestore/internal/models"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
)

// SetEarned records the score of a group for a part, replacing any earlier record. An
// unsaved group is created in the same transaction.
func (s *DataService) SetEarned(ctx context.Context, group *models.Group, partID, taID int64, earned *float64, submitted bool) error {
	if group == nil {
		return appErrors.Clone(appErrors.ErrValidation, "group is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveStored([]*models.Group{group})
	created := unsaved([]*models.Group{group})
	if err := s.store.SetEarnedWithGroup(ctx, group, partID, taID, earned, submitted, s.now()); err != nil {
		return storeError("set earned", group.Name, err)
	}
	s.adoptCreated(ctx, created)
	return nil
}

// Earned returns the grade record of a group for a part, or nil when none was recorded.
func (s *DataService) Earned(ctx context.Context, groupID, partID int64) (*models.GradeRecord, error) {
	rec, err := s.store.Grades.GetEarned(ctx, groupID, partID)
	if err != nil {
		return nil, storeError("get earned", "grade", err)
	}
	return rec, nil
}

// EarnedForGroups returns the grade records of many groups for one part keyed by group id.
func (s *DataService) EarnedForGroups(ctx context.Context, partID int64, groupIDs []int64) (map[int64]*models.GradeRecord, error) {
	recs, err := s.store.Grades.GetEarnedForGroups(ctx, partID, groupIDs)
	if err != nil {
		return nil, storeError("get earned", "grade", err)
	}
	return recs, nil
}

// SetEarnedSubmitted flips only the submitted flag of existing grade records.
func (s *DataService) SetEarnedSubmitted(ctx context.Context, partID int64, groupIDs []int64, submitted bool) error {
	return storeError("set submitted", "grade", s.store.Grades.SetEarnedSubmitted(ctx, partID, groupIDs, submitted))
}

// SetOccurrences records handin times. Records without a timestamp are stamped now.
func (s *DataService) SetOccurrences(ctx context.Context, occurrences []models.Occurrence) error {
	now := s.now()
	for i := range occurrences {
		if occurrences[i].RecordedAt.IsZero() {
			occurrences[i].RecordedAt = now
		}
	}
	return storeError("set occurrences", "occurrence", s.store.Records.SetOccurrences(ctx, occurrences))
}

// Occurrences returns the handin times of an event keyed by group id.
func (s *DataService) Occurrences(ctx context.Context, eventID int64) (map[int64]models.Occurrence, error) {
	occ, err := s.store.Records.GetOccurrences(ctx, eventID)
	if err != nil {
		return nil, storeError("get occurrences", "occurrence", err)
	}
	return occ, nil
}

// DeleteOccurrences removes handin times of the groups for an event.
func (s *DataService) DeleteOccurrences(ctx context.Context, eventID int64, groupIDs []int64) error {
	return storeError("delete occurrences", "occurrence", s.store.Records.DeleteOccurrences(ctx, eventID, groupIDs))
}

// SetExtensions records deadline overrides. Records without a timestamp are stamped now.
func (s *DataService) SetExtensions(ctx context.Context, extensions []models.Extension) error {
	now := s.now()
	for i := range extensions {
		if extensions[i].RecordedAt.IsZero() {
			extensions[i].RecordedAt = now
		}
	}
	return storeError("set extensions", "extension", s.store.Records.SetExtensions(ctx, extensions))
}

// Extensions returns the deadline overrides of an event keyed by group id.
func (s *DataService) Extensions(ctx context.Context, eventID int64) (map[int64]models.Extension, error) {
	ext, err := s.store.Records.GetExtensions(ctx, eventID)
	if err != nil {
		return nil, storeError("get extensions", "extension", err)
	}
	return ext, nil
}

// DeleteExtensions removes deadline overrides of the groups for an event.
func (s *DataService) DeleteExtensions(ctx context.Context, eventID int64, groupIDs []int64) error {
	return storeError("delete extensions", "extension", s.store.Records.DeleteExtensions(ctx, eventID, groupIDs))
}

// GrantExemptions waives parts for groups. Records without a timestamp are stamped now.
func (s *DataService) GrantExemptions(ctx context.Context, exemptions []models.Exemption) error {
	now := s.now()
	for i := range exemptions {
		if exemptions[i].RecordedAt.IsZero() {
			exemptions[i].RecordedAt = now
		}
	}
	return storeError("grant exemptions", "exemption", s.store.Records.GrantExemptions(ctx, exemptions))
}

// Exemptions returns the exemptions of a part keyed by group id.
func (s *DataService) Exemptions(ctx context.Context, partID int64) (map[int64]models.Exemption, error) {
	ex, err := s.store.Records.GetExemptions(ctx, partID)
	if err != nil {
		return nil, storeError("get exemptions", "exemption", err)
	}
	return ex, nil
}

// RemoveExemptions drops exemptions of the groups for a part.
func (s *DataService) RemoveExemptions(ctx context.Context, partID int64, groupIDs []int64) error {
	return storeError("remove exemptions", "exemption", s.store.Records.RemoveExemptions(ctx, partID, groupIDs))
}

// Deduction evaluates the deadline of an event for a group's handin, honouring the group's
// extension when one was granted.
func (s *DataService) Deduction(ctx context.Context, eventID, groupID int64, affectsAll bool) (float64, error) {
	ev, err := s.GradableEvent(eventID)
	if err != nil {
		return 0, err
	}
	occ, err := s.Occurrences(ctx, eventID)
	if err != nil {
		return 0, err
	}
	handin, ok := occ[groupID]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no handin recorded for group")
	}
	exts, err := s.Extensions(ctx, eventID)
	if err != nil {
		return 0, err
	}
	var ext *models.Extension
	if e, ok := exts[groupID]; ok {
		ext = &e
	}

	var total float64
	if affectsAll {
		asgn, err := s.Assignment(ev.AssignmentID)
		if err != nil {
			return 0, err
		}
		total = asgn.TotalPoints()
	}
	return EventDeduction(ev, ext, handin.OccurredAt, total, affectsAll), nil
}
