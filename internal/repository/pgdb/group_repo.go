package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// GroupRepo реализует репозиторий групп товаров поверх PostgreSQL.
type GroupRepo struct {
	pool *pgxpool.Pool
	conv converter.GroupConverter
}

func NewGroupRepo(pool *pgxpool.Pool, conv converter.GroupConverter) *GroupRepo {
	return &GroupRepo{
		pool: pool,
		conv: conv,
	}
}

// Create сохраняет новую группу. Выполняется в транзакции вызывающей стороны.
func (g *GroupRepo) Create(ctx context.Context, group *domain.ProductGroup) (*domain.ProductGroup, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	model := g.conv.ToModel(group)
	query := `
		INSERT INTO product_groups (
			id,
			tenant_id,
			primary_image_id,
			member_image_ids,
			name,
			category,
			confidence,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at;
	`

	err = tx.QueryRow(ctx, query,
		model.ID,
		model.TenantID,
		model.PrimaryImageID,
		model.MemberImageIDs,
		model.Name,
		model.Category,
		model.Confidence,
		model.CreatedAt,
	).Scan(&model.CreatedAt)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return g.conv.ToEntity(model), nil
}

// GetByID возвращает группу тенанта или nil, если группы нет.
func (g *GroupRepo) GetByID(ctx context.Context, tenantID, groupID string) (*domain.ProductGroup, error) {
	query := `
		SELECT id, tenant_id, primary_image_id, member_image_ids,
		       name, category, confidence, created_at, updated_at
		FROM product_groups
		WHERE tenant_id = $1 AND id = $2
	`

	row := g.queryRow(ctx, query, tenantID, groupID)

	var model converter.ProductGroupModel
	err := row.Scan(
		&model.ID, &model.TenantID, &model.PrimaryImageID, &model.MemberImageIDs,
		&model.Name, &model.Category, &model.Confidence, &model.CreatedAt, &model.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return g.conv.ToEntity(&model), nil
}

// AppendMember атомарно добавляет изображение в группу: условие в WHERE
// отсекает гонку двух конкурентных добавлений одного изображения.
// Возвращает false, если изображение уже состоит в группе.
func (g *GroupRepo) AppendMember(ctx context.Context, tenantID, groupID, imageID string) (bool, error) {
	query := `
		UPDATE product_groups
		SET member_image_ids = array_append(member_image_ids, $3),
		    updated_at = NOW()
		WHERE tenant_id = $1
		  AND id = $2
		  AND NOT ($3 = ANY(member_image_ids))
	`

	var result pgconn.CommandTag
	var err error
	if tx, txErr := tr.TxFromCtx(ctx); txErr == nil {
		result, err = tx.Exec(ctx, query, tenantID, groupID, imageID)
	} else {
		result, err = g.pool.Exec(ctx, query, tenantID, groupID, imageID)
	}
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return result.RowsAffected() > 0, nil
}

// queryRow выполняет чтение в транзакции вызывающей стороны, если она есть.
func (g *GroupRepo) queryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if tx, err := tr.TxFromCtx(ctx); err == nil {
		return tx.QueryRow(ctx, query, args...)
	}
	return g.pool.QueryRow(ctx, query, args...)
}
