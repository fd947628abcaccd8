package service

import (
	"math"
	"time"

	"github.com/noah-isme/gradestore/internal/models"
)

// CalculateDeduction returns the point delta a handin earns from its deadline policy.
// Negative results are penalties. The delta applies to the assignment total when the
// deadline affects all parts and to the part total otherwise.
func CalculateDeduction(in models.DeductionInput) float64 {
	total := in.PartTotal
	if in.AffectsAll {
		total = in.AssignmentTotal
	}

	if in.Status == models.StatusNCLate {
		return -total
	}

	switch in.Policy {
	case models.PolicyDailyDeduction:
		if in.Status != models.StatusLate {
			return 0
		}
		value := in.DailyDeduction * float64(in.DaysLate)
		switch in.Units {
		case models.UnitsPercentage:
			return value / 100 * total
		case models.UnitsPoints:
			return value
		}
	case models.PolicyMultipleDeadlines:
		var value float64
		switch in.Status {
		case models.StatusEarly:
			value = in.EarlyValue
		case models.StatusOnTime:
			value = in.OnTimeValue
		case models.StatusLate:
			value = in.LateValue
		default:
			return 0
		}
		switch in.Units {
		case models.UnitsPercentage:
			return value / 100 * total
		case models.UnitsPoints:
			return value
		}
	}
	return 0
}

// TimeStatusFor classifies a handin against the event deadline. An extension replaces the
// on-time date and, when it shifts dates, moves the early and late dates by the same amount.
func TimeStatusFor(deadline models.DeadlineInfo, ext *models.Extension, submittedAt time.Time) models.TimeStatus {
	onTime, early, late := effectiveDates(deadline, ext)
	if onTime == nil {
		return models.StatusOnTime
	}

	switch deadline.Type {
	case models.DeadlineFixed:
		if early != nil && !submittedAt.After(*early) {
			return models.StatusEarly
		}
		if !submittedAt.After(*onTime) {
			return models.StatusOnTime
		}
		if late != nil && !submittedAt.After(*late) {
			return models.StatusLate
		}
		return models.StatusNCLate
	case models.DeadlineVariable:
		if !submittedAt.After(*onTime) {
			return models.StatusOnTime
		}
		if late != nil && submittedAt.After(*late) {
			return models.StatusNCLate
		}
		return models.StatusLate
	default:
		return models.StatusOnTime
	}
}

// DaysLate counts started days between the on-time date and the handin.
func DaysLate(onTime, submittedAt time.Time) int {
	return PeriodsLate(onTime, submittedAt, 24*time.Hour)
}

// PeriodsLate counts started periods between the on-time date and the handin.
func PeriodsLate(onTime, submittedAt time.Time, period time.Duration) int {
	if period <= 0 || !submittedAt.After(onTime) {
		return 0
	}
	return int(math.Ceil(float64(submittedAt.Sub(onTime)) / float64(period)))
}

// EventDeduction evaluates an event's deadline descriptor for one handin. FIXED deadlines
// apply their early or late point values; VARIABLE deadlines apply the late points once per
// started late period.
func EventDeduction(ev *models.GradableEvent, ext *models.Extension, submittedAt time.Time, assignmentTotal float64, affectsAll bool) float64 {
	in := models.DeductionInput{
		Status:          TimeStatusFor(ev.Deadline, ext, submittedAt),
		Units:           models.UnitsPoints,
		AffectsAll:      affectsAll,
		AssignmentTotal: assignmentTotal,
		PartTotal:       ev.TotalPoints(),
	}

	switch ev.Deadline.Type {
	case models.DeadlineFixed:
		in.Policy = models.PolicyMultipleDeadlines
		in.EarlyValue = valueOf(ev.Deadline.EarlyPoints)
		in.LateValue = valueOf(ev.Deadline.LatePoints)
	case models.DeadlineVariable:
		in.Policy = models.PolicyDailyDeduction
		in.DailyDeduction = valueOf(ev.Deadline.LatePoints)
		onTime, _, _ := effectiveDates(ev.Deadline, ext)
		period := 24 * time.Hour
		if ev.Deadline.LatePeriod != nil {
			period = *ev.Deadline.LatePeriod
		}
		if onTime != nil {
			in.DaysLate = PeriodsLate(*onTime, submittedAt, period)
		}
	default:
		return 0
	}
	return CalculateDeduction(in)
}

func effectiveDates(deadline models.DeadlineInfo, ext *models.Extension) (onTime, early, late *time.Time) {
	onTime, early, late = deadline.OnTimeDate, deadline.EarlyDate, deadline.LateDate
	if ext == nil {
		return onTime, early, late
	}

	extended := ext.OnTime
	if ext.ShiftDates && onTime != nil {
		shift := extended.Sub(*onTime)
		early = shiftTime(early, shift)
		late = shiftTime(late, shift)
	}
	return &extended, early, late
}

func shiftTime(t *time.Time, d time.Duration) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Add(d)
	return &v
}

func valueOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
