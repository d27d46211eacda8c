package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

// Repository persists account profiles. Balances live with the ledger store;
// the two share the accounts table.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account row with a zero balance.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, phone, display_name, role, balance, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)`,
		acct.ID, acct.Phone, acct.DisplayName, acct.Role, acct.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperrors.ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Get fetches an account by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone, display_name, role, created_at
		FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, phone, display_name, role, created_at
		FROM accounts WHERE phone = $1`, phone)
	return scanAccount(row)
}

// UpdateRole stores the new role. Upgrades are validated by the caller; this
// is a plain write.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id uuid.UUID, role Role) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Phone, &a.DisplayName, &a.Role, &a.CreatedAt)
	switch {
	case err == nil:
		a.CreatedAt = a.CreatedAt.UTC()
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return Account{}, apperrors.ErrAccountNotFound
	default:
		return Account{}, fmt.Errorf("scan account: %w", err)
	}
}
