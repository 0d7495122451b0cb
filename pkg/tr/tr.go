package tr

import (
	"context"

	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jackc/pgx/v5"
)

// TxFromCtx достаёт pgx.Tx, положенную в контекст транзакционным контуром.
// Репозитории требуют транзакцию там, где запись обязана быть атомарной.
func TxFromCtx(ctx context.Context) (pgx.Tx, error) {
	txAny := ctx.Value("tx")
	tx, ok := txAny.(pgx.Tx)
	if !ok {
		return nil, e.ErrTransactionNotFound
	}
	return tx, nil
}
