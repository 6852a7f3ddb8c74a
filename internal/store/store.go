// Package store is the SQLite persistence layer. It owns every query the
// engine runs; rules and generators describe lookups declaratively and the
// store executes them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"tasknode/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) Store {
	return Store{DB: db}
}

const memoColumns = `hash, account, destination, memo_type, memo_format, memo_data, value_amount, ts, success`

// InsertTransaction records a ledger transaction idempotently by hash. The
// second return reports whether the row was new. Successful transactions also
// move value between account balances.
func (s Store) InsertTransaction(ctx context.Context, tx *sql.Tx, t domain.Transaction) (bool, error) {
	if t.Hash == "" {
		return false, errors.New("hash required")
	}
	if t.Account == "" || t.Destination == "" {
		return false, errors.New("account and destination required")
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return s.DB.ExecContext(ctx, query, args...)
	}
	res, err := exec(`INSERT OR IGNORE INTO transaction_memos(`+memoColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.Hash, t.Account, t.Destination, t.MemoType, t.MemoFormat, t.MemoData, t.ValueAmount, t.TS, boolInt(t.Success))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if t.Success && t.ValueAmount > 0 {
		if _, err := exec(`INSERT INTO account_balances(account, balance) VALUES (?, ?)
			ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance`, t.Destination, t.ValueAmount); err != nil {
			return false, err
		}
		if _, err := exec(`INSERT INTO account_balances(account, balance) VALUES (?, ?)
			ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance`, t.Account, -t.ValueAmount); err != nil {
			return false, err
		}
	}
	return true, nil
}

// GetTransaction returns a transaction by hash.
func (s Store) GetTransaction(ctx context.Context, hash string) (domain.Transaction, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM transaction_memos WHERE hash=?`, hash)
	return scanTransaction(row)
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	Account      string // sender
	Destination  string // receiver
	Counterparty string // matches either side
	MemoType     string // exact memo_type
	SuccessOnly  bool
	Since        string // ts > Since
	Limit        int
	Descending   bool
}

// ListTransactions returns transactions matching the filter, ordered by ts.
func (s Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + memoColumns + ` FROM transaction_memos`
	var clauses []string
	var args []any
	if f.Account != "" {
		clauses = append(clauses, `account=?`)
		args = append(args, f.Account)
	}
	if f.Destination != "" {
		clauses = append(clauses, `destination=?`)
		args = append(args, f.Destination)
	}
	if f.Counterparty != "" {
		clauses = append(clauses, `(account=? OR destination=?)`)
		args = append(args, f.Counterparty, f.Counterparty)
	}
	if f.MemoType != "" {
		clauses = append(clauses, `memo_type=?`)
		args = append(args, f.MemoType)
	}
	if f.SuccessOnly {
		clauses = append(clauses, `success=1`)
	}
	if f.Since != "" {
		clauses = append(clauses, `ts > ?`)
		args = append(args, f.Since)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	if f.Descending {
		query += ` ORDER BY ts DESC`
	} else {
		query += ` ORDER BY ts ASC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// FindResponse executes a declarative pairing lookup. A response travels the
// reverse direction of its request, so the request's destination is the
// response's sender. The earliest matching response wins so the recorded
// pairing is stable under replay. ErrNotFound means the request is still
// unanswered.
func (s Store) FindResponse(ctx context.Context, q domain.ResponseQuery) (domain.Transaction, error) {
	query := `SELECT ` + memoColumns + ` FROM transaction_memos WHERE account=? AND destination=? AND success=1`
	args := []any{q.Destination, q.Account}
	if q.TypeIsSuffix {
		query += ` AND memo_type LIKE ?`
		args = append(args, "%"+q.ResponseMemoType)
	} else {
		query += ` AND memo_type=?`
		args = append(args, q.ResponseMemoType)
	}
	if q.RequireAfterRequest && q.RequestTS != "" {
		query += ` AND ts > ?`
		args = append(args, q.RequestTS)
	}
	query += ` ORDER BY ts ASC LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, args...)
	return scanTransaction(row)
}

// LatestByType returns the most recent successful transaction with the exact
// memo_type, optionally restricted to a destination account.
func (s Store) LatestByType(ctx context.Context, memoType, destination string) (domain.Transaction, error) {
	query := `SELECT ` + memoColumns + ` FROM transaction_memos WHERE memo_type=? AND success=1`
	args := []any{memoType}
	if destination != "" {
		query += ` AND destination=?`
		args = append(args, destination)
	}
	query += ` ORDER BY ts DESC LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, args...)
	return scanTransaction(row)
}

// LatestBySuffix returns the most recent successful transaction between two
// addresses whose memo_type carries the given lifecycle suffix.
func (s Store) LatestBySuffix(ctx context.Context, account, destination, suffix string) (domain.Transaction, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM transaction_memos
		WHERE account=? AND destination=? AND success=1 AND memo_type LIKE ? ESCAPE '\'
		ORDER BY ts DESC LIMIT 1`, account, destination, `%\_\_`+suffix)
	return scanTransaction(row)
}

// RewardHistory returns successful task rewards sent to account since the
// given timestamp, oldest first. Only memo types ending in the literal
// __REWARD suffix count; initiation rewards are one-shot and excluded.
func (s Store) RewardHistory(ctx context.Context, account, since string) ([]domain.Transaction, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+memoColumns+` FROM transaction_memos
		WHERE destination=? AND success=1 AND ts > ? AND memo_type LIKE '%\_\_REWARD' ESCAPE '\'
		ORDER BY ts ASC`, account, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransaction(row *sql.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var success int
	err := row.Scan(&t.Hash, &t.Account, &t.Destination, &t.MemoType, &t.MemoFormat, &t.MemoData, &t.ValueAmount, &t.TS, &success)
	if err == sql.ErrNoRows {
		return domain.Transaction{}, ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Success = success != 0
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var success int
		if err := rows.Scan(&t.Hash, &t.Account, &t.Destination, &t.MemoType, &t.MemoFormat, &t.MemoData, &t.ValueAmount, &t.TS, &success); err != nil {
			return nil, err
		}
		t.Success = success != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
