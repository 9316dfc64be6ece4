package chuangzhi

import "github.com/shopspring/decimal"

// decimalAmount wraps the mode-selected upload amount so the engine
// formats it one way everywhere: float on the wire, two fraction
// digits in result listings.
type decimalAmount struct {
	decimal.Decimal
}

func (a decimalAmount) Float64() float64 {
	f, _ := a.Decimal.Float64()
	return f
}

func (a decimalAmount) Fixed2() string {
	return a.Decimal.StringFixed(2)
}
