package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// AccountRepository is the usage ledger: one row per user identifier with a
// usage counter and a tier. Increments are atomic at the SQL layer so
// concurrent runs from the same user never lose updates.
type AccountRepository interface {
	GetOrCreate(ctx context.Context, identifier string) (*entity.Account, error)
	Get(ctx context.Context, identifier string) (*entity.Account, error)
	IncrementUsage(ctx context.Context, identifier string, delta int) error
	SetTier(ctx context.Context, identifier string, tier constants.Tier, status constants.ReceiptStatus) error
	SetReceiptStatus(ctx context.Context, identifier string, status constants.ReceiptStatus) error
	ListPendingReceipts(ctx context.Context) ([]*entity.Account, error)
}

type accountRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	identifier     TEXT PRIMARY KEY,
	usage_count    INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
	tier           TEXT NOT NULL DEFAULT 'FREE',
	receipt_status TEXT NOT NULL DEFAULT 'NONE',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);`

// Open opens (creating if needed) the ledger database and bootstraps the
// schema. SQLite has a single writer, so the pool is capped at one
// connection; WAL keeps readers off the writer's back.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("ledger.open", "path", path)

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.WrapError(err, "open ledger db")
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "ping ledger db")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "bootstrap ledger schema")
	}

	logger.Info("ledger.open.ok", "path", path)
	return db, nil
}

func NewAccountRepository(db *sql.DB, logger *slog.Logger) AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &accountRepository{db: db, logger: logger}
}

// GetOrCreate returns the account, seeding a fresh FREE row with zero usage
// on first sign-in.
func (r *accountRepository) GetOrCreate(ctx context.Context, identifier string) (*entity.Account, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (identifier, usage_count, tier, receipt_status, created_at, updated_at)
		 VALUES (?, 0, ?, ?, ?, ?)
		 ON CONFLICT (identifier) DO NOTHING`,
		identifier, string(constants.TierFree), string(constants.ReceiptStatusNone), now, now)
	if err != nil {
		r.logger.Error("ledger.get_or_create.failed", "identifier", identifier, "error", err)
		return nil, err
	}
	return r.Get(ctx, identifier)
}

func (r *accountRepository) Get(ctx context.Context, identifier string) (*entity.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT identifier, usage_count, tier, receipt_status, created_at, updated_at
		 FROM accounts WHERE identifier = ?`, identifier)
	return scanAccount(row)
}

// IncrementUsage adds delta to the usage counter in a single UPDATE. The
// read-modify-write happens inside the database, so concurrent increments
// are never lost and the counter is monotonic.
func (r *accountRepository) IncrementUsage(ctx context.Context, identifier string, delta int) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative usage delta", common.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET usage_count = usage_count + ?, updated_at = ? WHERE identifier = ?`,
		delta, time.Now().UTC(), identifier)
	if err != nil {
		r.logger.Error("ledger.increment.failed", "identifier", identifier, "delta", delta, "error", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *accountRepository) SetTier(ctx context.Context, identifier string, tier constants.Tier, status constants.ReceiptStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET tier = ?, receipt_status = ?, updated_at = ? WHERE identifier = ?`,
		string(tier), string(status), time.Now().UTC(), identifier)
	if err != nil {
		r.logger.Error("ledger.set_tier.failed", "identifier", identifier, "tier", tier, "error", err)
		return err
	}
	return requireRow(res)
}

func (r *accountRepository) SetReceiptStatus(ctx context.Context, identifier string, status constants.ReceiptStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET receipt_status = ?, updated_at = ? WHERE identifier = ?`,
		string(status), time.Now().UTC(), identifier)
	if err != nil {
		r.logger.Error("ledger.set_receipt_status.failed", "identifier", identifier, "status", status, "error", err)
		return err
	}
	return requireRow(res)
}

// ListPendingReceipts returns accounts waiting for admin receipt review.
func (r *accountRepository) ListPendingReceipts(ctx context.Context) ([]*entity.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identifier, usage_count, tier, receipt_status, created_at, updated_at
		 FROM accounts WHERE receipt_status = ? ORDER BY updated_at`,
		string(constants.ReceiptStatusPending))
	if err != nil {
		r.logger.Error("ledger.list_pending.failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*entity.Account, error) {
	var (
		a      entity.Account
		tier   string
		status string
	)
	err := row.Scan(&a.Identifier, &a.UsageCount, &tier, &status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Tier = constants.Tier(tier)
	a.ReceiptStatus = constants.ReceiptStatus(status)
	return &a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
