// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lelloman/quentin/internal/database"
	"github.com/lelloman/quentin/internal/domain"
)

// AuditLog implements §4.3's append-only event log.
type AuditLog struct {
	db *database.DB
}

func NewAuditLog(db *database.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Append is single-writer-serialized through the database's write mutex,
// same as every other write path.
func (a *AuditLog) Append(ctx context.Context, kind domain.EventKind, ticketID, userID string, payload []byte) (int64, error) {
	var id int64
	err := a.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO audit_events (timestamp, event_kind, ticket_id, user_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, nowUTC(), string(kind), nullIfEmpty(ticketID), nullIfEmpty(userID), payload)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, &domain.ErrStorage{Op: "audit.append", Err: err}
	}
	return id, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Query implements the AND-filtered, paginated read path. Appends may
// happen concurrently; query reads use the pooled connection and never
// take the write mutex.
func (a *AuditLog) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int, error) {
	filter.Clamp()

	where := []string{"1 = 1"}
	args := []any{}

	if filter.TicketID != "" {
		where = append(where, "ticket_id = ?")
		args = append(args, filter.TicketID)
	}
	if filter.HasKind {
		where = append(where, "event_kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.HasRange {
		where = append(where, "timestamp >= ? AND timestamp <= ?")
		args = append(args, filter.From, filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := a.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, &domain.ErrStorage{Op: "audit.query.count", Err: err}
	}

	order := "id ASC"
	if filter.Reverse {
		order = "id DESC"
	}
	query := fmt.Sprintf("SELECT id, timestamp, event_kind, ticket_id, user_id, payload FROM audit_events WHERE %s ORDER BY %s LIMIT ? OFFSET ?", whereClause, order)
	rows, err := a.db.Conn().QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, &domain.ErrStorage{Op: "audit.query", Err: err}
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var ts time.Time
		var kind string
		var ticketID, userID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &kind, &ticketID, &userID, &e.Payload); err != nil {
			return nil, 0, &domain.ErrStorage{Op: "audit.query.scan", Err: err}
		}
		e.Timestamp = ts
		e.Kind = domain.EventKind(kind)
		e.TicketID = ticketID.String
		e.UserID = userID.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &domain.ErrStorage{Op: "audit.query.rows", Err: err}
	}
	return out, total, nil
}
