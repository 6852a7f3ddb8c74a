package store

import (
	"context"
	"strings"

	"tasknode/internal/domain"
)

// EventFilter narrows ListEvents. Zero fields are ignored.
type EventFilter struct {
	Account string
	Type    string
	AfterID int64
	Limit   int
}

// ListEvents returns audit events in insertion order.
func (s Store) ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	query := `SELECT id, ts, type, COALESCE(account,''), entity_kind, COALESCE(entity_id,''), payload_json FROM events`
	var clauses []string
	var args []any
	if f.Account != "" {
		clauses = append(clauses, `account=?`)
		args = append(args, f.Account)
	}
	if f.Type != "" {
		clauses = append(clauses, `type=?`)
		args = append(args, f.Type)
	}
	if f.AfterID > 0 {
		clauses = append(clauses, `id > ?`)
		args = append(args, f.AfterID)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Account, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// TailEvents returns the most recent n events, oldest first.
func (s Store) TailEvents(ctx context.Context, n int) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, ts, type, COALESCE(account,''), entity_kind, COALESCE(entity_id,''), payload_json
		FROM (SELECT * FROM events ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.Account, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
