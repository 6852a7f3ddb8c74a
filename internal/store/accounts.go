package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tasknode/internal/domain"
)

// GetBalance returns the tracked balance for an account. Unknown accounts
// have a zero balance rather than an error.
func (s Store) GetBalance(ctx context.Context, account string) (domain.AccountBalance, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT balance FROM account_balances WHERE account=?`, account)
	bal := domain.AccountBalance{Account: account}
	err := row.Scan(&bal.Balance)
	if err == sql.ErrNoRows {
		return bal, nil
	}
	if err != nil {
		return domain.AccountBalance{}, err
	}
	return bal, nil
}

// SetBalance overwrites an account balance. Used by operators to seed a
// projection from an external snapshot.
func (s Store) SetBalance(ctx context.Context, account string, balance float64) error {
	if account == "" {
		return errors.New("account required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO account_balances(account, balance) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET balance = excluded.balance`, account, balance)
	return err
}

// GetAuthorization returns the authorization row for an address. Addresses
// never seen before are unauthorized and unflagged.
func (s Store) GetAuthorization(ctx context.Context, address string) (domain.AddressAuthorization, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT authorized, flag, flagged_at FROM authorized_addresses WHERE address=?`, address)
	auth := domain.AddressAuthorization{Address: address}
	var authorized int
	var flag, flaggedAt sql.NullString
	err := row.Scan(&authorized, &flag, &flaggedAt)
	if err == sql.ErrNoRows {
		return auth, nil
	}
	if err != nil {
		return domain.AddressAuthorization{}, err
	}
	auth.Authorized = authorized != 0
	if flag.Valid {
		auth.Flag = &flag.String
	}
	if flaggedAt.Valid {
		auth.FlaggedAt = &flaggedAt.String
	}
	return auth, nil
}

// SetAuthorized marks an address as allowed (or not) to interact with the
// node when the authorization gate is on.
func (s Store) SetAuthorized(ctx context.Context, address string, authorized bool) error {
	if address == "" {
		return errors.New("address required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO authorized_addresses(address, authorized) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET authorized = excluded.authorized`, address, boolInt(authorized))
	return err
}

// FlagAddress records a RED or YELLOW flag against an address. The flag is
// committed before any memo that reports it leaves the node, so a crash
// cannot lose the verdict. Accepts an optional transaction for that reason.
func (s Store) FlagAddress(ctx context.Context, tx *sql.Tx, address string, level domain.FlagLevel, now time.Time) error {
	if address == "" {
		return errors.New("address required")
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return s.DB.ExecContext(ctx, query, args...)
	}
	ts := now.UTC().Format(time.RFC3339)
	_, err := exec(`INSERT INTO authorized_addresses(address, authorized, flag, flagged_at) VALUES (?, 0, ?, ?)
		ON CONFLICT(address) DO UPDATE SET flag = excluded.flag, flagged_at = excluded.flagged_at`,
		address, string(level), ts)
	return err
}

// UpsertAccountDoc stores the latest context document link for an account.
func (s Store) UpsertAccountDoc(ctx context.Context, tx *sql.Tx, doc domain.AccountDoc) error {
	if doc.Account == "" {
		return errors.New("account required")
	}
	if doc.DocLink == "" {
		return errors.New("doc_link required")
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return s.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO account_docs(account, doc_link, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET doc_link = excluded.doc_link, updated_at = excluded.updated_at`,
		doc.Account, doc.DocLink, doc.UpdatedAt)
	return err
}

// GetAccountDoc returns the stored context document link for an account.
func (s Store) GetAccountDoc(ctx context.Context, account string) (domain.AccountDoc, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT account, doc_link, updated_at FROM account_docs WHERE account=?`, account)
	var doc domain.AccountDoc
	err := row.Scan(&doc.Account, &doc.DocLink, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.AccountDoc{}, ErrNotFound
	}
	if err != nil {
		return domain.AccountDoc{}, err
	}
	return doc, nil
}
