package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/CodeXPrim8/BU/internal/apperrors"
)

// PostgresStore persists accounts and transfer entries in PostgreSQL. Balance
// mutations and the entry write share one transaction, so the cached balance
// column can never drift from the entry fold.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectEntry = `SELECT id, sender_account_id, receiver_account_id, amount, kind, status, COALESCE(reference, ''), COALESCE(message, ''), created_at
	FROM transfer_entries`

// EnsureAccount guarantees a zero-balance ledger account row exists. Accounts
// created through registration already exist; this covers seeded or suspense
// accounts.
func (s *PostgresStore) EnsureAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `INSERT INTO accounts (id, phone, display_name, role, balance)
		VALUES ($1, $2, 'User', 'guest', 0)
		ON CONFLICT (id) DO NOTHING`, accountID, accountID.String())
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Apply executes a posting: lock the involved accounts in lexicographic id
// order, insert the entry pending, move balances, and mark it completed, all
// in one transaction. A failure after the insert records the entry as failed
// outside the rolled-back transaction before returning.
func (s *PostgresStore) Apply(ctx context.Context, p Posting) (TransferEntry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferEntry{}, storeErr(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for _, id := range lockOrder(p) {
		var balance decimal.Decimal
		if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TransferEntry{}, apperrors.ErrAccountNotFound
			}
			return TransferEntry{}, classify(err)
		}
		balances[id] = balance
	}

	if p.Reference != "" {
		prior, err := s.entryByReference(ctx, tx, p.Reference)
		if err == nil {
			return prior, apperrors.ErrDuplicateReference
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return TransferEntry{}, classify(err)
		}
	}

	if p.Sender != nil && !p.Kind.External() && balances[*p.Sender].LessThan(p.Amount) {
		return TransferEntry{}, apperrors.ErrInsufficientBalance
	}

	entry := TransferEntry{
		ID:        uuid.New(),
		Sender:    p.Sender,
		Receiver:  p.Receiver,
		Amount:    p.Amount,
		Kind:      p.Kind,
		Status:    StatusPending,
		Reference: p.Reference,
		Message:   p.Message,
	}
	err = tx.QueryRow(ctx, `INSERT INTO transfer_entries (id, sender_account_id, receiver_account_id, amount, kind, status, reference, message)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
		RETURNING created_at`,
		entry.ID, p.Sender, p.Receiver, p.Amount, p.Kind, StatusPending, p.Reference, p.Message).Scan(&entry.CreatedAt)
	if err != nil {
		return s.replayOrFail(ctx, tx, p, entry, err)
	}

	if err := s.moveBalances(ctx, tx, p); err != nil {
		return s.replayOrFail(ctx, tx, p, entry, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE transfer_entries SET status = $1 WHERE id = $2 AND status = $3`,
		StatusCompleted, entry.ID, StatusPending); err != nil {
		return s.replayOrFail(ctx, tx, p, entry, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return s.replayOrFail(ctx, tx, p, entry, err)
	}

	entry.Status = StatusCompleted
	return entry, nil
}

func (s *PostgresStore) moveBalances(ctx context.Context, tx pgx.Tx, p Posting) error {
	if p.Sender != nil {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, p.Amount, *p.Sender); err != nil {
			return err
		}
	}
	if p.Receiver != nil {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, p.Amount, *p.Receiver); err != nil {
			return err
		}
	}
	return nil
}

// replayOrFail resolves an error raised after the pending insert. The open
// transaction is rolled back first: the failed-entry record goes through the
// pool, and it would otherwise wait on the uncommitted pending row this very
// request still holds. A unique violation on the reference index means a
// concurrent replay won the race, so the prior completed entry is returned.
// The failed record carries no reference, leaving the idempotency key free
// for the gateway's retry.
func (s *PostgresStore) replayOrFail(ctx context.Context, tx pgx.Tx, p Posting, entry TransferEntry, cause error) (TransferEntry, error) {
	_ = tx.Rollback(ctx)

	var pgErr *pgconn.PgError
	if errors.As(cause, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && p.Reference != "" {
		prior, err := s.entryByReference(ctx, s.db, p.Reference)
		if err == nil {
			return prior, apperrors.ErrDuplicateReference
		}
	}

	classified := classify(cause)
	if errors.Is(classified, apperrors.ErrConcurrencyConflict) {
		// The posting never became visible; the caller retries from scratch.
		return TransferEntry{}, classified
	}

	_, recordErr := s.db.Exec(ctx, `INSERT INTO transfer_entries (id, sender_account_id, receiver_account_id, amount, kind, status, reference, message)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, NULLIF($7, ''))
		ON CONFLICT (id) DO UPDATE SET status = $6 WHERE transfer_entries.status = 'pending'`,
		entry.ID, p.Sender, p.Receiver, p.Amount, p.Kind, StatusFailed, p.Message)
	if recordErr != nil {
		return TransferEntry{}, fmt.Errorf("record failed entry: %w", classified)
	}
	entry.Status = StatusFailed
	entry.Reference = ""
	return entry, classified
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// entryByReference resolves a reference to the entry that actually credited.
// Only completed entries count; a row that never reached completed must not
// answer a replay.
func (s *PostgresStore) entryByReference(ctx context.Context, q queryer, reference string) (TransferEntry, error) {
	row := q.QueryRow(ctx, selectEntry+` WHERE reference = $1 AND status = 'completed'`, reference)
	return scanEntry(row)
}

// Balance reads the cached running total maintained alongside entry writes.
func (s *PostgresStore) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return decimal.Zero, apperrors.ErrAccountNotFound
	default:
		return decimal.Zero, classify(err)
	}
}

// AuthoritativeBalance folds completed entries. Used by consistency checks
// and reconciliation, not the hot path.
func (s *PostgresStore) AuthoritativeBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return decimal.Zero, classify(err)
	}
	if !exists {
		return decimal.Zero, apperrors.ErrAccountNotFound
	}

	var total decimal.Decimal
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN receiver_account_id = $1 THEN amount ELSE -amount END), 0)
		FROM transfer_entries
		WHERE status = 'completed' AND (sender_account_id = $1 OR receiver_account_id = $1)`, accountID).Scan(&total)
	if err != nil {
		return decimal.Zero, classify(err)
	}
	return total, nil
}

// Entries lists entries touching the account, newest first.
func (s *PostgresStore) Entries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]TransferEntry, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, classify(err)
	}
	if !exists {
		return nil, apperrors.ErrAccountNotFound
	}

	rows, _ := s.db.Query(ctx, selectEntry+` WHERE sender_account_id = $1 OR receiver_account_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, accountID, limit, offset)
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TransferEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (TransferEntry, error) {
	var e TransferEntry
	err := row.Scan(&e.ID, &e.Sender, &e.Receiver, &e.Amount, &e.Kind, &e.Status, &e.Reference, &e.Message, &e.CreatedAt)
	return e, err
}

func lockOrder(p Posting) []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	for _, ref := range []*uuid.UUID{p.Sender, p.Receiver} {
		if ref == nil {
			continue
		}
		dup := false
		for _, id := range ids {
			if id == *ref {
				dup = true
			}
		}
		if !dup {
			ids = append(ids, *ref)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// classify maps Postgres errors onto the application taxonomy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %s", apperrors.ErrConcurrencyConflict, pgErr.Code)
		case pgerrcode.CheckViolation:
			// The non-negative balance constraint is the last line of defense.
			return apperrors.ErrInsufficientBalance
		}
	}
	return storeErr(err)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
}
