package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gradestore/internal/models"
)

func TestCalculateDeduction(t *testing.T) {
	tests := []struct {
		name string
		in   models.DeductionInput
		want float64
	}{
		{
			name: "daily deduction in points scales by days late",
			in: models.DeductionInput{
				Status: models.StatusLate, Policy: models.PolicyDailyDeduction, Units: models.UnitsPoints,
				DailyDeduction: 5, DaysLate: 3, PartTotal: 100,
			},
			want: 15,
		},
		{
			name: "daily deduction in percentage scales against the part total",
			in: models.DeductionInput{
				Status: models.StatusLate, Policy: models.PolicyDailyDeduction, Units: models.UnitsPercentage,
				DailyDeduction: -10, DaysLate: 2, PartTotal: 50,
			},
			want: -10,
		},
		{
			name: "daily deduction ignores on time handins",
			in: models.DeductionInput{
				Status: models.StatusOnTime, Policy: models.PolicyDailyDeduction, Units: models.UnitsPoints,
				DailyDeduction: 5, DaysLate: 3,
			},
			want: 0,
		},
		{
			name: "nc late takes the whole total regardless of policy",
			in: models.DeductionInput{
				Status: models.StatusNCLate, Policy: models.PolicyMultipleDeadlines, Units: models.UnitsPoints,
				LateValue: -5, PartTotal: 100,
			},
			want: -100,
		},
		{
			name: "nc late uses the assignment total when the deadline affects all parts",
			in: models.DeductionInput{
				Status: models.StatusNCLate, AffectsAll: true, AssignmentTotal: 250, PartTotal: 100,
			},
			want: -250,
		},
		{
			name: "multiple deadlines early bonus in points is unscaled",
			in: models.DeductionInput{
				Status: models.StatusEarly, Policy: models.PolicyMultipleDeadlines, Units: models.UnitsPoints,
				EarlyValue: 3, PartTotal: 40,
			},
			want: 3,
		},
		{
			name: "multiple deadlines late percentage of assignment total",
			in: models.DeductionInput{
				Status: models.StatusLate, Policy: models.PolicyMultipleDeadlines, Units: models.UnitsPercentage,
				LateValue: -20, AffectsAll: true, AssignmentTotal: 200, PartTotal: 40,
			},
			want: -40,
		},
		{
			name: "unknown policy yields zero",
			in: models.DeductionInput{
				Status: models.StatusLate, Policy: "CURVE", Units: models.UnitsPoints, LateValue: -5,
			},
			want: 0,
		},
		{
			name: "unknown units yield zero",
			in: models.DeductionInput{
				Status: models.StatusLate, Policy: models.PolicyMultipleDeadlines, LateValue: -5,
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateDeduction(tt.in), 1e-9)
		})
	}
}

func TestTimeStatusForFixedDeadline(t *testing.T) {
	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	early := onTime.Add(-48 * time.Hour)
	late := onTime.Add(72 * time.Hour)
	deadline := models.DeadlineInfo{Type: models.DeadlineFixed, EarlyDate: &early, OnTimeDate: &onTime, LateDate: &late}

	assert.Equal(t, models.StatusEarly, TimeStatusFor(deadline, nil, early))
	assert.Equal(t, models.StatusOnTime, TimeStatusFor(deadline, nil, onTime))
	assert.Equal(t, models.StatusLate, TimeStatusFor(deadline, nil, onTime.Add(time.Minute)))
	assert.Equal(t, models.StatusNCLate, TimeStatusFor(deadline, nil, late.Add(time.Second)))

	ext := &models.Extension{OnTime: onTime.Add(96 * time.Hour), ShiftDates: true}
	assert.Equal(t, models.StatusOnTime, TimeStatusFor(deadline, ext, late.Add(time.Hour)))
	assert.Equal(t, models.StatusEarly, TimeStatusFor(deadline, ext, onTime.Add(time.Hour)))

	unshifted := &models.Extension{OnTime: onTime.Add(96 * time.Hour)}
	assert.Equal(t, models.StatusOnTime, TimeStatusFor(deadline, unshifted, onTime.Add(time.Hour)))
}

func TestTimeStatusForVariableAndNoDeadline(t *testing.T) {
	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	cutoff := onTime.Add(5 * 24 * time.Hour)
	deadline := models.DeadlineInfo{Type: models.DeadlineVariable, OnTimeDate: &onTime, LateDate: &cutoff}

	assert.Equal(t, models.StatusOnTime, TimeStatusFor(deadline, nil, onTime))
	assert.Equal(t, models.StatusLate, TimeStatusFor(deadline, nil, onTime.Add(30*time.Hour)))
	assert.Equal(t, models.StatusNCLate, TimeStatusFor(deadline, nil, cutoff.Add(time.Minute)))

	none := models.DeadlineInfo{Type: models.DeadlineNone}
	assert.Equal(t, models.StatusOnTime, TimeStatusFor(none, nil, onTime.Add(1000*time.Hour)))
}

func TestDaysLate(t *testing.T) {
	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysLate(onTime, onTime))
	assert.Equal(t, 0, DaysLate(onTime, onTime.Add(-time.Hour)))
	assert.Equal(t, 1, DaysLate(onTime, onTime.Add(time.Minute)))
	assert.Equal(t, 3, DaysLate(onTime, onTime.Add(48*time.Hour+time.Second)))
	assert.Equal(t, 4, PeriodsLate(onTime, onTime.Add(7*time.Hour), 2*time.Hour))
}

func TestEventDeduction(t *testing.T) {
	onTime := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	latePoints := -2.0
	period := 12 * time.Hour
	ev := &models.GradableEvent{
		Deadline: models.DeadlineInfo{Type: models.DeadlineVariable, OnTimeDate: &onTime, LatePoints: &latePoints, LatePeriod: &period},
		Parts:    []*models.Part{{OutOf: 30}, {OutOf: 20}},
	}

	assert.InDelta(t, -6, EventDeduction(ev, nil, onTime.Add(25*time.Hour), 0, false), 1e-9)
	assert.InDelta(t, 0, EventDeduction(ev, nil, onTime, 0, false), 1e-9)

	earlyPoints := 4.0
	late := onTime.Add(24 * time.Hour)
	early := onTime.Add(-24 * time.Hour)
	fixed := &models.GradableEvent{
		Deadline: models.DeadlineInfo{Type: models.DeadlineFixed, EarlyDate: &early, OnTimeDate: &onTime, LateDate: &late, EarlyPoints: &earlyPoints, LatePoints: &latePoints},
		Parts:    []*models.Part{{OutOf: 50}},
	}
	assert.InDelta(t, 4, EventDeduction(fixed, nil, early, 0, false), 1e-9)
	assert.InDelta(t, -2, EventDeduction(fixed, nil, onTime.Add(time.Hour), 0, false), 1e-9)
	assert.InDelta(t, -50, EventDeduction(fixed, nil, late.Add(time.Hour), 0, false), 1e-9)
	assert.InDelta(t, -120, EventDeduction(fixed, nil, late.Add(time.Hour), 120, true), 1e-9)
}
