package service

import (
	"time"

	"phonebay/internal/model"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

// EMIScheduleLine 还款计划中的一期
type EMIScheduleLine struct {
	Number    int             `json:"number"`
	DueDate   time.Time       `json:"due_date"`
	Amount    decimal.Decimal `json:"amount"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"` // 本期还款后剩余本金
}

// EMISchedule 等额本息还款计划
type EMISchedule struct {
	Financed           decimal.Decimal   `json:"financed"`
	AnnualRate         decimal.Decimal   `json:"interest_rate"`
	Months             int               `json:"months"`
	MonthlyInstallment decimal.Decimal   `json:"monthly_installment"`
	TotalPayable       decimal.Decimal   `json:"total_payable"`
	TotalInterest      decimal.Decimal   `json:"total_interest"`
	ProcessingFee      decimal.Decimal   `json:"processing_fee"`
	Lines              []EMIScheduleLine `json:"schedule"`
}

// CalculateEMI 计算等额本息还款计划
// financed 为实际贷款金额（已扣除首付），annualRate 为年化百分比，start 为起始日期（只取日期部分）
func CalculateEMI(financed, annualRate decimal.Decimal, months int, start time.Time) (*EMISchedule, error) {
	if !financed.IsPositive() {
		return nil, invalidf("贷款金额必须大于 0")
	}
	if months < 1 || months > model.EMIMaxMonths {
		return nil, invalidf("分期月数须在 1~%d 之间", model.EMIMaxMonths)
	}
	if annualRate.IsNegative() || annualRate.GreaterThan(hundred) {
		return nil, invalidf("年利率须在 0~100 之间")
	}

	lines := buildSchedule(financed, annualRate, dateOnly(start), sequence(1, months))
	sched := &EMISchedule{
		Financed:           financed,
		AnnualRate:         annualRate,
		Months:             months,
		MonthlyInstallment: lines[0].Amount,
		TotalPayable:       decimal.Zero,
		ProcessingFee:      decimal.Zero,
		Lines:              lines,
	}
	for _, l := range lines {
		sched.TotalPayable = sched.TotalPayable.Add(l.Amount)
	}
	sched.TotalInterest = sched.TotalPayable.Sub(financed)
	return sched, nil
}

// monthlyRate 月利率 = 年化 / 12 / 100
func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(decimal.NewFromInt(1200))
}

// monthlyInstallment EMI = P * r * (1+r)^n / ((1+r)^n - 1)，四舍五入到分
func monthlyInstallment(financed, r decimal.Decimal, months int) decimal.Decimal {
	if r.IsZero() {
		return financed.Div(decimal.NewFromInt(int64(months))).Round(2)
	}
	onePlusR := decimal.NewFromInt(1).Add(r)
	pow := decimal.NewFromInt(1)
	for i := 0; i < months; i++ {
		pow = pow.Mul(onePlusR).Round(24)
	}
	return financed.Mul(r).Mul(pow).Div(pow.Sub(decimal.NewFromInt(1))).Round(2)
}

// buildSchedule 按 numbers 依次生成还款明细，第 k 期到期日 = start + k 个月
// 最后一期承担舍入差额，结束后剩余本金恰好为 0
func buildSchedule(financed, annualRate decimal.Decimal, start time.Time, numbers []int) []EMIScheduleLine {
	months := len(numbers)
	r := monthlyRate(annualRate)
	emi := monthlyInstallment(financed, r, months)

	lines := make([]EMIScheduleLine, 0, months)
	balance := financed
	for i, number := range numbers {
		interest := balance.Mul(r).Round(2)

		var principal, amount decimal.Decimal
		if i == months-1 {
			principal = balance
			amount = principal.Add(interest)
		} else {
			principal = emi.Sub(interest)
			amount = emi
		}
		balance = balance.Sub(principal)

		lines = append(lines, EMIScheduleLine{
			Number:    number,
			DueDate:   addMonthsClamped(start, number),
			Amount:    amount,
			Principal: principal,
			Interest:  interest,
			Balance:   balance,
		})
	}
	return lines
}

// sequence [from, from+n)
func sequence(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

// ProcessingFee 手续费 = 贷款金额 * 费率% ，不计入还款计划
func ProcessingFee(financed, percent decimal.Decimal) decimal.Decimal {
	return financed.Mul(percent).Div(hundred).Round(2)
}

// addMonthsClamped start 之后第 months 个自然月的同一天；该月没有这一天时取月末
// 每次都从原始起始日计算（1/31 -> 2/28 -> 3/31），不会累积漂移
func addMonthsClamped(start time.Time, months int) time.Time {
	first := now.With(start).BeginningOfMonth().AddDate(0, months, 0)
	last := now.With(first).EndOfMonth()
	day := start.Day()
	if day > last.Day() {
		day = last.Day()
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, start.Location())
}

// dateOnly 截取 UTC 日期
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// toInstallments 计划 -> 持久化明细
func toInstallments(applicationID int64, lines []EMIScheduleLine) []model.EMIInstallment {
	items := make([]model.EMIInstallment, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.EMIInstallment{
			ApplicationID: applicationID,
			Number:        l.Number,
			DueDate:       l.DueDate,
			Amount:        l.Amount,
			Principal:     l.Principal,
			Interest:      l.Interest,
			Balance:       l.Balance,
			Status:        model.InstallmentPending,
		})
	}
	return items
}
