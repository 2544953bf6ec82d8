package service

import (
	"time"

	"github.com/shopspring/decimal"
)

const overdueBlock = 24 * time.Hour

// DaysOverdue 计算逾期天数
// 以应返日 23:59:59（actual 所在时区）为锚点，之后每满或不满 24 小时计 1 天
func DaysOverdue(expectedReturn, actualReturn time.Time) int {
	y, m, d := expectedReturn.Date()
	boundary := time.Date(y, m, d, 23, 59, 59, 0, actualReturn.Location())

	if !actualReturn.After(boundary) {
		return 0
	}
	late := actualReturn.Sub(boundary)
	return int((late + overdueBlock - 1) / overdueBlock)
}

// DebtAmount 欠款金额 = 逾期天数 × 日费率
func DebtAmount(days int, dailyRate decimal.Decimal) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(days))).Round(2)
}
