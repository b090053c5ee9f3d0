package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stars-shop/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

const paymentColumns = `id, user_id, product_id, quantity, amount, status, invoice_link,
	created_at, paid_at, refunded_at, charge_id, total_amount`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects through the pgx stdlib driver and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgres(db), nil
}

// Migrate runs the embedded goose migrations up to the latest version.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back the latest migration.
func MigrateDown(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Down(db, "migrations"); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, p models.Payment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.UserID, p.ProductID, p.Quantity, p.Amount, string(p.Status), p.InvoiceLink,
		p.CreatedAt, nullTime(p.PaidAt), nullTime(p.RefundedAt), p.ExternalChargeID, p.TotalAmount,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Payment{}, ErrNotFound
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *Postgres) Update(ctx context.Context, id string, fn UpdateFunc) (models.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	cur, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Payment{}, ErrNotFound
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("lock payment: %w", err)
	}

	next := clonePayment(cur)
	if err := fn(&next); err != nil {
		return cur, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE payments SET status = $1, invoice_link = $2, paid_at = $3,
		refunded_at = $4, charge_id = $5, total_amount = $6 WHERE id = $7`,
		string(next.Status), next.InvoiceLink, nullTime(next.PaidAt), nullTime(next.RefundedAt),
		next.ExternalChargeID, next.TotalAmount, id,
	)
	if err != nil {
		return models.Payment{}, fmt.Errorf("update payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Payment{}, fmt.Errorf("commit: %w", err)
	}
	next.ID = id
	return next, nil
}

func (s *Postgres) ListByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(r rowScanner) (models.Payment, error) {
	var (
		p          models.Payment
		status     string
		paidAt     sql.NullTime
		refundedAt sql.NullTime
	)
	err := r.Scan(&p.ID, &p.UserID, &p.ProductID, &p.Quantity, &p.Amount, &status, &p.InvoiceLink,
		&p.CreatedAt, &paidAt, &refundedAt, &p.ExternalChargeID, &p.TotalAmount)
	if err != nil {
		return models.Payment{}, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return models.Payment{}, err
	}
	p.Status = st
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
