package domain

import "github.com/shopspring/decimal"

// PriceFactors — разложение предложенной цены по множителям.
type PriceFactors struct {
	BasePrice     decimal.Decimal
	Seasonal      float64
	Condition     float64
	VisualQuality float64
	SampleSize    int
}

// PriceSuggestion — рекомендация цены для нового товара.
// Пересчитывается на каждый запрос и не кэшируется.
type PriceSuggestion struct {
	Price       decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	Confidence  float64 // [0, 1]
	Factors     PriceFactors
	Explanation string
	Currency    string
}
