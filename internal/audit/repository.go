package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads admin_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Window returns entries matching filters, newest first.
func (r *PGRepository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.admin_id, u.email, l.action, l.created_at
FROM admin_logs l
JOIN users u ON u.id = l.admin_id
WHERE ($1::timestamptz IS NULL OR l.created_at >= $1)
  AND ($2::timestamptz IS NULL OR l.created_at < $2)
  AND ($3::bigint IS NULL OR l.admin_id = $3)
  AND ($4::text IS NULL OR l.action ILIKE '%' || $4 || '%')
ORDER BY l.created_at DESC, l.id DESC
OFFSET $5 LIMIT $6`,
		optionalTime(f.From), optionalTime(f.To), optionalID(f.AdminID), optionalText(f.Action), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.AdminEmail, &e.Action, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalID(id int64) pgtype.Int8 {
	if id <= 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
