package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEMI_Amortized(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	sched, err := CalculateEMI(dec("100000"), dec("12"), 12, start)
	require.NoError(t, err)

	assert.Equal(t, "8884.88", sched.MonthlyInstallment.StringFixed(2))
	require.Len(t, sched.Lines, 12)

	sum, principal := decimal.Zero, decimal.Zero
	for i, l := range sched.Lines {
		assert.Equal(t, i+1, l.Number)
		assert.True(t, l.Amount.Equal(l.Principal.Add(l.Interest)), "第 %d 期金额应等于本金 + 利息", l.Number)
		sum = sum.Add(l.Amount)
		principal = principal.Add(l.Principal)
	}
	assert.True(t, sum.Equal(sched.TotalPayable))
	assert.True(t, principal.Equal(dec("100000")), "本金合计应等于贷款金额")
	assert.True(t, sched.Lines[11].Balance.IsZero(), "最后一期后剩余本金为 0")
	assert.True(t, sched.TotalInterest.Equal(sched.TotalPayable.Sub(dec("100000"))))

	// 第一期利息 = 100000 * 1%
	assert.Equal(t, "1000.00", sched.Lines[0].Interest.StringFixed(2))
}

func TestCalculateEMI_ZeroInterest(t *testing.T) {
	sched, err := CalculateEMI(dec("10000"), decimal.Zero, 3, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "3333.33", sched.MonthlyInstallment.StringFixed(2))
	assert.Equal(t, "3333.34", sched.Lines[2].Amount.StringFixed(2), "最后一期承担舍入差额")
	assert.Equal(t, "10000.00", sched.TotalPayable.StringFixed(2))
	assert.True(t, sched.TotalInterest.IsZero())
}

func TestCalculateEMI_Validation(t *testing.T) {
	start := time.Now()
	tests := []struct {
		name     string
		financed decimal.Decimal
		rate     decimal.Decimal
		months   int
	}{
		{"金额为 0", decimal.Zero, dec("10"), 12},
		{"金额为负", dec("-1"), dec("10"), 12},
		{"月数为 0", dec("1000"), dec("10"), 0},
		{"月数超过 60", dec("1000"), dec("10"), 61},
		{"利率为负", dec("1000"), dec("-1"), 12},
		{"利率超过 100", dec("1000"), dec("101"), 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateEMI(tt.financed, tt.rate, tt.months, start)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCalculateEMI_DueDatesClampToMonthEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	sched, err := CalculateEMI(dec("4000"), dec("9"), 4, start)
	require.NoError(t, err)

	want := []string{"2026-02-28", "2026-03-31", "2026-04-30", "2026-05-31"}
	for i, l := range sched.Lines {
		assert.Equal(t, want[i], l.DueDate.Format(time.DateOnly))
	}
}

func TestAddMonthsClamped_LeapYear(t *testing.T) {
	start := time.Date(2027, 11, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2028-02-29", addMonthsClamped(start, 3).Format(time.DateOnly))
	assert.Equal(t, "2028-03-30", addMonthsClamped(start, 4).Format(time.DateOnly))
}

func TestProcessingFee(t *testing.T) {
	assert.Equal(t, "150.00", ProcessingFee(dec("10000"), dec("1.5")).StringFixed(2))
	assert.True(t, ProcessingFee(dec("10000"), decimal.Zero).IsZero())
}
