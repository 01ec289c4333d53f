package service

import (
	"github.com/shopspring/decimal"
)

const (
	FeeTypePercentage = "percentage"
	FeeTypeFixed      = "fixed"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy 手续费规则，转账和提现各一份
type FeePolicy struct {
	Enabled bool            `json:"enabled"`
	Type    string          `json:"type"` // percentage / fixed
	Value   decimal.Decimal `json:"value"`
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

// ComputeFee 计算手续费
//
//	percentage: amount * value / 100
//	fixed:      value
//
// 结果先取 max(fee, minimum) 再取 min(fee, maximum)，最后四舍五入到分
func ComputeFee(amount decimal.Decimal, policy FeePolicy) decimal.Decimal {
	if !policy.Enabled {
		return decimal.Zero
	}

	var fee decimal.Decimal
	if policy.Type == FeeTypePercentage {
		fee = amount.Mul(policy.Value).Div(hundred)
	} else {
		fee = policy.Value
	}

	fee = decimal.Max(fee, policy.Minimum)
	fee = decimal.Min(fee, policy.Maximum)

	return fee.Round(2)
}

// FeeQuote 手续费预览
type FeeQuote struct {
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
	Total  decimal.Decimal `json:"total"`
}

func Quote(amount decimal.Decimal, policy FeePolicy) FeeQuote {
	fee := ComputeFee(amount, policy)
	return FeeQuote{Amount: amount, Fee: fee, Total: amount.Add(fee)}
}
