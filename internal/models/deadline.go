package models

// TimeStatus classifies when a handin happened relative to its deadline.
type TimeStatus string

const (
	StatusEarly  TimeStatus = "EARLY"
	StatusOnTime TimeStatus = "ON_TIME"
	StatusLate   TimeStatus = "LATE"
	// StatusNCLate is late beyond any credit; it always costs the full total.
	StatusNCLate TimeStatus = "NC_LATE"
)

// LatePolicy selects how lateness is penalised.
type LatePolicy string

const (
	PolicyDailyDeduction    LatePolicy = "DAILY_DEDUCTION"
	PolicyMultipleDeadlines LatePolicy = "MULTIPLE_DEADLINES"
)

// GradeUnits selects whether deadline values are points or percentages of a total.
type GradeUnits string

const (
	UnitsPercentage GradeUnits = "PERCENTAGE"
	UnitsPoints     GradeUnits = "POINTS"
)

// DeductionInput carries everything the deduction calculation needs. Late values are
// conventionally negative; the calculation applies them with the sign they are given.
type DeductionInput struct {
	Status          TimeStatus
	Policy          LatePolicy
	Units           GradeUnits
	DailyDeduction  float64
	DaysLate        int
	EarlyValue      float64
	OnTimeValue     float64
	LateValue       float64
	AffectsAll      bool
	AssignmentTotal float64
	PartTotal       float64
}
