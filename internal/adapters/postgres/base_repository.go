package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BaseRepository is embedded by every repository so that agent, prompt,
// call and outbox writes all follow the transaction on the context.
type BaseRepository struct {
	pool *pgxpool.Pool
}

func NewBaseRepository(pool *pgxpool.Pool) BaseRepository {
	return BaseRepository{pool: pool}
}

func (r *BaseRepository) conn(ctx context.Context) Querier {
	return GetConn(ctx, r.pool)
}
