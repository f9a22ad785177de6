package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

var _ domain.DocumentStore = (*Postgres)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_fields_idx ON documents USING GIN (fields jsonb_path_ops);
`

// Postgres хранит документы всех коллекций в одной jsonb-таблице.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу документов, если её нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("создание схемы документов: %w", err)
	}
	return nil
}

// CreateDocument вставляет документ. Пустой id заменяется на uuid.
func (p *Postgres) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	payload, err := json.Marshal(nonNil(fields))
	if err != nil {
		return domain.Document{}, domain.Remote("create document", fmt.Errorf("кодирование полей: %w", err))
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var raw []byte
	err = p.pool.QueryRow(ctx, `
INSERT INTO documents (collection, id, fields)
VALUES ($1, $2, $3)
RETURNING fields
`, collection, id, payload).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "document_create", collection, start, err)
	if err != nil {
		return domain.Document{}, pgError("create document", err)
	}
	return decodeRow(id, raw)
}

// GetDocument возвращает документ по id.
func (p *Postgres) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT fields FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "document_get", collection, start, err)
	if err != nil {
		return domain.Document{}, pgError("get document", err)
	}
	return decodeRow(id, raw)
}

// ListDocuments возвращает документы коллекции, подходящие под все фильтры, в порядке вставки.
func (p *Postgres) ListDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	payload, err := containment(filters)
	if err != nil {
		return nil, domain.Remote("list documents", fmt.Errorf("кодирование фильтра: %w", err))
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, fields FROM documents
WHERE collection=$1 AND fields @> $2::jsonb
ORDER BY created_at, id
`, collection, payload)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "document_list", collection, start, err)
		return nil, domain.Remote("list documents", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			metrics.ObserveNetworkRequest("postgres", "document_list", collection, start, err)
			return nil, domain.Remote("list documents", err)
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "document_list", collection, start, err)
	if err != nil {
		return nil, domain.Remote("list documents", err)
	}
	return docs, nil
}

// UpdateDocument сливает fields с сохранёнными полями документа.
func (p *Postgres) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	payload, err := json.Marshal(nonNil(fields))
	if err != nil {
		return domain.Document{}, domain.Remote("update document", fmt.Errorf("кодирование полей: %w", err))
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var raw []byte
	err = p.pool.QueryRow(ctx, `
UPDATE documents SET fields = fields || $3::jsonb, updated_at = now()
WHERE collection=$1 AND id=$2
RETURNING fields
`, collection, id, payload).Scan(&raw)
	metrics.ObserveNetworkRequest("postgres", "document_update", collection, start, err)
	if err != nil {
		return domain.Document{}, pgError("update document", err)
	}
	return decodeRow(id, raw)
}

// DeleteDocument удаляет документ. Для отсутствующего документа возвращает ErrNotFound.
func (p *Postgres) DeleteDocument(ctx context.Context, collection, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	metrics.ObserveNetworkRequest("postgres", "document_delete", collection, start, err)
	if err != nil {
		return pgError("delete document", err)
	}
	return affected("delete document", res.RowsAffected())
}

// CountByCollection возвращает число документов по коллекциям.
func (p *Postgres) CountByCollection(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT collection, count(*) FROM documents GROUP BY collection`)
	if err != nil {
		return nil, fmt.Errorf("подсчёт документов: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var (
			collection string
			n          int64
		)
		if err := rows.Scan(&collection, &n); err != nil {
			return nil, err
		}
		counts[collection] = n
	}
	return counts, rows.Err()
}

// uniqueViolation — SQLSTATE нарушения уникального ключа.
const uniqueViolation = "23505"

// pgError переводит ошибку pgx в ошибку хранилища.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.Remote(op, domain.ErrNotFound)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return domain.Remote(op, domain.ErrConflict)
	default:
		return domain.Remote(op, err)
	}
}

// affected превращает ноль затронутых строк в ErrNotFound.
func affected(op string, rows int64) error {
	if rows == 0 {
		return domain.Remote(op, domain.ErrNotFound)
	}
	return nil
}

// containment строит jsonb-образец для оператора @>.
func containment(filters []domain.Filter) ([]byte, error) {
	match := make(map[string]any, len(filters))
	for _, f := range filters {
		match[f.Field] = f.Value
	}
	return json.Marshal(match)
}

func decodeRow(id string, raw []byte) (domain.Document, error) {
	fields := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return domain.Document{}, domain.Remote("decode document", err)
		}
	}
	return domain.Document{ID: id, Fields: fields}, nil
}

func nonNil(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}
