package models

import "time"

// GradeRecord stores the earned score of a group for a part. TAID is Unassigned when the
// recording TA is unknown or was removed.
type GradeRecord struct {
	PartID     int64     `json:"part_id"`
	GroupID    int64     `json:"group_id"`
	TAID       int64     `json:"ta_id,omitempty"`
	Earned     *float64  `json:"earned,omitempty"`
	Submitted  bool      `json:"submitted"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Occurrence records when a group's handin for a gradable event happened.
type Occurrence struct {
	GradableEventID int64     `json:"gradable_event_id"`
	GroupID         int64     `json:"group_id"`
	OccurredAt      time.Time `json:"occurred_at"`
	TAID            int64     `json:"ta_id,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Extension overrides the on-time date of a gradable event for one group.
type Extension struct {
	GradableEventID int64     `json:"gradable_event_id"`
	GroupID         int64     `json:"group_id"`
	OnTime          time.Time `json:"on_time"`
	ShiftDates      bool      `json:"shift_dates"`
	Note            string    `json:"note,omitempty"`
	TAID            int64     `json:"ta_id,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Exemption waives a group's obligation for a part without touching its score.
type Exemption struct {
	PartID     int64     `json:"part_id"`
	GroupID    int64     `json:"group_id"`
	Note       string    `json:"note,omitempty"`
	TAID       int64     `json:"ta_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
