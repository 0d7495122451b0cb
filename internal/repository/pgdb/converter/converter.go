//go:generate goverter gen github.com/DRSN-tech/go-similarity/internal/repository/pgdb/converter
package converter

import (
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
)

// GroupConverter преобразует сущности ProductGroup между domain и моделью PostgreSQL.
// goverter:converter
// goverter:extend ConvertTime
// goverter:extend ConvertPointerTime
type GroupConverter interface {
	ToModel(entity *domain.ProductGroup) *ProductGroupModel
	ToEntity(model *ProductGroupModel) *domain.ProductGroup
}

// SaleConverter преобразует сущности SaleRecord между domain и моделью PostgreSQL.
// goverter:converter
// goverter:extend ConvertTime
type SaleConverter interface {
	ToEntity(model *SaleModel) *domain.SaleRecord
	ToArrEntity(models []*SaleModel) []domain.SaleRecord
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
// goverter:converter
// goverter:extend ConvertTime
// goverter:extend ConvertPointerTime
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

func ConvertPointerTime(t *time.Time) *time.Time {
	return t
}

func ConvertTime(t time.Time) time.Time {
	return t
}
