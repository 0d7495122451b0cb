package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/shopspring/decimal"
)

// Статические таблицы множителей — неизменяемые конфигурационные данные,
// загружаемые один раз при старте процесса.

// seasonalMultipliers — фиксированный сезонный множитель по категории.
var seasonalMultipliers = map[string]float64{
	"clothing":    1.05,
	"shoes":       1.00,
	"accessories": 1.00,
	"electronics": 0.95,
	"toys":        1.10,
	"sports":      1.05,
	"furniture":   0.90,
}

// conditionMultipliers — множитель по состоянию товара.
var conditionMultipliers = map[string]float64{
	"new_with_tags": 1.20,
	"new":           1.15,
	"like_new":      1.10,
	"good":          0.95,
	"fair":          0.85,
	"poor":          0.75,
}

// defaultCondition применяется, когда состояние не указано или неизвестно.
const defaultCondition = "good"

// currencyByLanguage — выбор валюты по коду языка отображения.
var currencyByLanguage = map[string]string{
	"en": "USD",
	"de": "EUR",
	"fr": "EUR",
	"es": "EUR",
	"it": "EUR",
	"pl": "PLN",
	"ja": "JPY",
	"ru": "RUB",
}

// roundingIncrements — шаг округления цены по валюте.
var roundingIncrements = map[string]decimal.Decimal{
	"JPY": decimal.NewFromInt(10),
	"RUB": decimal.NewFromInt(10),
	"PLN": decimal.NewFromInt(1),
}

var defaultRoundingIncrement = decimal.NewFromFloat(0.5)

// Ширина ценового диапазона зависит от уверенности; параметры смешивания
// уверенности подобраны под насыщение на ~10 продажах и полураспад свежести ~90 дней.
const (
	rangeNarrowPct       = 0.15
	rangeWidePct         = 0.25
	confidenceForNarrow  = 0.7
	saturationSampleSize = 10.0
	recencyHalfLifeDays  = 90.0
	weightSampleSize     = 0.4
	weightRecency        = 0.3
	weightVariance       = 0.3
)

// PriceCalculator — чистое вычисление рекомендации цены по отобранным продажам.
type PriceCalculator struct {
	defaultBasePrice decimal.Decimal
	baseCurrency     string
	now              func() time.Time
}

func NewPriceCalculator(defaultBasePrice float64, baseCurrency string) *PriceCalculator {
	return &PriceCalculator{
		defaultBasePrice: decimal.NewFromFloat(defaultBasePrice),
		baseCurrency:     baseCurrency,
		now:              time.Now,
	}
}

// Calculate считает рекомендацию цены:
// base (среднее по продажам) x сезонный x состояние x визуальное качество,
// с округлением до валютного шага и диапазоном, зависящим от уверенности.
// При нулевом числе продаж используется базовая цена по умолчанию
// с почти нулевой уверенностью — это не ошибка.
func (c *PriceCalculator) Calculate(sales []domain.SaleRecord, condition, category, language string,
	quality QualityAssessment) *domain.PriceSuggestion {

	currency := c.currencyFor(language)

	seasonal := seasonalMultiplier(category)
	cond := conditionMultiplier(condition)
	visual := visualQualityMultiplier(quality)

	var base decimal.Decimal
	var explanation string
	var confidence float64

	if len(sales) == 0 {
		base = c.defaultBasePrice
		confidence = 0.05
		explanation = "no comparable sales found; falling back to the default base price"
	} else {
		base = meanPrice(sales)
		confidence = c.confidence(sales)
		explanation = fmt.Sprintf("based on %d comparable sales, condition %q, visual quality %s",
			len(sales), conditionOrDefault(condition), quality.PhotoQuality)
	}

	price := base.
		Mul(decimal.NewFromFloat(seasonal)).
		Mul(decimal.NewFromFloat(cond)).
		Mul(decimal.NewFromFloat(visual))
	price = roundToIncrement(price, currency)

	minPrice, maxPrice := priceRange(price, confidence)

	return &domain.PriceSuggestion{
		Price:      price,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Confidence: confidence,
		Factors: domain.PriceFactors{
			BasePrice:     base,
			Seasonal:      seasonal,
			Condition:     cond,
			VisualQuality: visual,
			SampleSize:    len(sales),
		},
		Explanation: explanation,
		Currency:    currency,
	}
}

// confidence — взвешенное смешение адекватности выборки, свежести продаж
// и тесноты разброса цен, ограниченное [0, 1].
func (c *PriceCalculator) confidence(sales []domain.SaleRecord) float64 {
	sample := math.Min(1.0, float64(len(sales))/saturationSampleSize)

	now := c.now()
	var recencySum float64
	for _, s := range sales {
		ageDays := now.Sub(s.SoldAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recencySum += math.Exp(-ageDays / recencyHalfLifeDays)
	}
	recency := recencySum / float64(len(sales))

	variance := varianceTightness(sales)

	confidence := weightSampleSize*sample + weightRecency*recency + weightVariance*variance
	return clamp01(confidence)
}

func (c *PriceCalculator) currencyFor(language string) string {
	if currency, ok := currencyByLanguage[language]; ok {
		return currency
	}
	return c.baseCurrency
}

// varianceTightness: меньший относительный разброс цен — выше уверенность.
func varianceTightness(sales []domain.SaleRecord) float64 {
	if len(sales) < 2 {
		return 1.0
	}

	mean, _ := meanPrice(sales).Float64()
	if mean == 0 {
		return 0
	}

	var sumSq float64
	for _, s := range sales {
		p, _ := s.Price.Float64()
		d := p - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(sales)))

	return 1.0 / (1.0 + stddev/mean)
}

func meanPrice(sales []domain.SaleRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range sales {
		sum = sum.Add(s.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(sales))))
}

func seasonalMultiplier(category string) float64 {
	if m, ok := seasonalMultipliers[category]; ok {
		return m
	}
	return 1.0
}

func conditionMultiplier(condition string) float64 {
	if m, ok := conditionMultipliers[condition]; ok {
		return m
	}
	return conditionMultipliers[defaultCondition]
}

func conditionOrDefault(condition string) string {
	if _, ok := conditionMultipliers[condition]; ok {
		return condition
	}
	return defaultCondition
}

// visualQualityMultiplier ограничивает множитель оценщика диапазоном [0.75, 1.15]
// и дополнительно штрафует плохое качество фотографии.
func visualQualityMultiplier(quality QualityAssessment) float64 {
	const (
		minMultiplier    = 0.75
		maxMultiplier    = 1.15
		poorPhotoPenalty = 0.95
	)

	m := quality.Multiplier
	if m < minMultiplier {
		m = minMultiplier
	}
	if m > maxMultiplier {
		m = maxMultiplier
	}

	if quality.PhotoQuality == "poor" {
		m *= poorPhotoPenalty
	}

	return m
}

func roundToIncrement(price decimal.Decimal, currency string) decimal.Decimal {
	increment, ok := roundingIncrements[currency]
	if !ok {
		increment = defaultRoundingIncrement
	}

	return price.Div(increment).Round(0).Mul(increment)
}

func priceRange(price decimal.Decimal, confidence float64) (decimal.Decimal, decimal.Decimal) {
	pct := rangeWidePct
	if confidence >= confidenceForNarrow {
		pct = rangeNarrowPct
	}

	delta := price.Mul(decimal.NewFromFloat(pct))
	return price.Sub(delta), price.Add(delta)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
