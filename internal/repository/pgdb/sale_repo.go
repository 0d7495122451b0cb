package pgdb

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// SaleRepo реализует чтение записей о продажах. Продажи неизменяемы:
// репозиторий не имеет операций записи, данные заливает внешний импорт.
type SaleRepo struct {
	pool   *pgxpool.Pool
	conv   converter.SaleConverter
	logger logger.Logger
}

func NewSaleRepo(pool *pgxpool.Pool, conv converter.SaleConverter, logger logger.Logger) *SaleRepo {
	return &SaleRepo{
		pool:   pool,
		conv:   conv,
		logger: logger,
	}
}

// GetByIDs возвращает продажи тенанта по идентификаторам. Повреждённая
// запись пропускается с предупреждением, а не валит весь запрос:
// для ценообразования достаточно уцелевших сопоставимых продаж.
func (s *SaleRepo) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.SaleRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, product_id, tenant_id, price, currency, category, condition, sold_at
		FROM sales
		WHERE tenant_id = $1 AND id = ANY($2)
	`

	rows, err := s.pool.Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	models := make([]*converter.SaleModel, 0, len(ids))
	for rows.Next() {
		var model converter.SaleModel
		if err := rows.Scan(
			&model.ID, &model.ProductID, &model.TenantID, &model.Price,
			&model.Currency, &model.Category, &model.Condition, &model.SoldAt,
		); err != nil {
			s.logger.Warnf("Skipping unreadable sale record. tenant_id: %s, error: %v",
				tenantID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		models = append(models, &model)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return s.conv.ToArrEntity(models), nil
}
