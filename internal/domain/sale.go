package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord описывает завершённую продажу. Запись неизменяема после создания
// и читается движком ценообразования только на чтение. Вектор изображения
// продажи живёт в векторном хранилище и в запись не гидрируется.
type SaleRecord struct {
	ID        string
	ProductID string
	TenantID  string
	Price     decimal.Decimal
	Currency  string
	Category  string
	Condition string
	SoldAt    time.Time
}
