package models

import (
	"github.com/Evan-ql/shuadan/utils"
	"github.com/shopspring/decimal"
)

// Commission holds the derived amounts for one settlement record.
// All values are recomputed from the three stored inputs on every
// call; derived fields are never read back as inputs.
type Commission struct {
	Markup       decimal.Decimal `json:"markup"`
	OrigIncome   decimal.Decimal `json:"origIncome"`
	MarkupIncome decimal.Decimal `json:"markupIncome"`
	MarkupActual decimal.Decimal `json:"markupActual"`
	ActualIncome decimal.Decimal `json:"actualIncome"`
}

var commissionRate = decimal.NewFromFloat(0.4)

// CalculateCommission computes the split for one record. Empty or
// malformed amount strings count as zero. Negative results are
// meaningful (over-transfer eats into income) and are not clamped.
func CalculateCommission(originalPrice, totalPrice, actualTransferOut string) Commission {
	op := utils.DecimalOrZero(originalPrice)
	tp := utils.DecimalOrZero(totalPrice)
	at := utils.DecimalOrZero(actualTransferOut)

	markup := tp.Sub(op)
	origIncome := op.Mul(commissionRate)
	markupIncome := markup.Mul(commissionRate)
	markupActual := markupIncome.Sub(at)
	actualIncome := origIncome.Add(markupActual)

	return Commission{
		Markup:       markup,
		OrigIncome:   origIncome,
		MarkupIncome: markupIncome,
		MarkupActual: markupActual,
		ActualIncome: actualIncome,
	}
}
