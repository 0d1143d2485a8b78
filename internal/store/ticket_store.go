// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package store implements the SQLite-backed Ticket Store, Audit Log and
// Torrent Metadata Cache (§§4.2, 4.3, 4.6).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lelloman/quentin/internal/database"
	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/statemachine"
)

// TicketStore implements §4.2's contract against a *database.DB.
type TicketStore struct {
	db *database.DB
}

func NewTicketStore(db *database.DB) *TicketStore {
	return &TicketStore{db: db}
}

func nowUTC() time.Time { return time.Now().UTC() }

func (s *TicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	queryCtxJSON, err := json.Marshal(req.QueryCtx)
	if err != nil {
		return domain.Ticket{}, &domain.ErrStorage{Op: "create", Err: err}
	}
	var outputJSON []byte
	if req.Output != nil {
		outputJSON, err = json.Marshal(req.Output)
		if err != nil {
			return domain.Ticket{}, &domain.ErrStorage{Op: "create", Err: err}
		}
	}

	initial := domain.NewPendingState()
	stateJSON, err := json.Marshal(initial)
	if err != nil {
		return domain.Ticket{}, &domain.ErrStorage{Op: "create", Err: err}
	}

	t := domain.Ticket{
		ID:        uuid.NewString(),
		CreatedBy: req.CreatedBy,
		Priority:  req.Priority,
		QueryCtx:  req.QueryCtx,
		DestPath:  req.DestPath,
		Output:    req.Output,
		State:     initial,
		CreatedAt: nowUTC(),
		UpdatedAt: nowUTC(),
	}

	audit, err := json.Marshal(domain.StateChangedPayload{ToState: domain.StatePending})
	if err != nil {
		return domain.Ticket{}, &domain.ErrStorage{Op: "create", Err: err}
	}

	var outputSQL sql.NullString
	if outputJSON != nil {
		outputSQL = sql.NullString{String: string(outputJSON), Valid: true}
	}

	err = s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tickets (id, created_by, description, request_json, dest_path, output_json, state_type, state_json, priority, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.CreatedBy, t.QueryCtx.Description, string(queryCtxJSON), t.DestPath, outputSQL, string(initial.Type), string(stateJSON), t.Priority, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_events (timestamp, event_kind, ticket_id, user_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, nowUTC(), string(domain.EventTicketCreated), t.ID, t.CreatedBy, audit)
		return err
	})
	if err != nil {
		return domain.Ticket{}, &domain.ErrStorage{Op: "create", Err: err}
	}
	return t, nil
}

type ticketRow struct {
	id          string
	createdBy   string
	queryCtx    string
	destPath    string
	output      sql.NullString
	stateJSON   string
	priority    uint16
	createdAt   time.Time
	updatedAt   time.Time
}

func scanTicketRow(scan func(dest ...any) error) (domain.Ticket, error) {
	var r ticketRow
	if err := scan(&r.id, &r.createdBy, &r.queryCtx, &r.destPath, &r.output, &r.stateJSON, &r.priority, &r.createdAt, &r.updatedAt); err != nil {
		return domain.Ticket{}, err
	}

	t := domain.Ticket{
		ID:        r.id,
		CreatedBy: r.createdBy,
		DestPath:  r.destPath,
		Priority:  r.priority,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
	if err := json.Unmarshal([]byte(r.queryCtx), &t.QueryCtx); err != nil {
		return domain.Ticket{}, err
	}
	if err := json.Unmarshal([]byte(r.stateJSON), &t.State); err != nil {
		return domain.Ticket{}, err
	}
	if r.output.Valid {
		var out domain.OutputConstraints
		if err := json.Unmarshal([]byte(r.output.String), &out); err != nil {
			return domain.Ticket{}, err
		}
		t.Output = &out
	}
	return t, nil
}

const ticketColumns = "id, created_by, request_json, dest_path, output_json, state_json, priority, created_at, updated_at"

func (s *TicketStore) Get(ctx context.Context, id string) (domain.Ticket, error) {
	row := s.db.Conn().QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ? AND deleted_at IS NULL", id)
	t, err := scanTicketRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Ticket{}, &domain.ErrNotFound{Kind: "ticket", ID: id}
		}
		return domain.Ticket{}, &domain.ErrStorage{Op: "get", Err: err}
	}
	return t, nil
}

func (s *TicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, int, error) {
	filter.Clamp()

	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.HasStateType {
		where = append(where, "state_type = ?")
		args = append(args, string(filter.StateType))
	}
	if filter.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.DescriptionContains != "" {
		where = append(where, "description LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.DescriptionContains)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM tickets WHERE " + whereClause
	if err := s.db.Conn().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, &domain.ErrStorage{Op: "list.count", Err: err}
	}

	order := "created_at DESC"
	if filter.Reverse {
		order = "created_at ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT ? OFFSET ?", ticketColumns, whereClause, order)
	rows, err := s.db.Conn().QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, &domain.ErrStorage{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicketRow(rows.Scan)
		if err != nil {
			return nil, 0, &domain.ErrStorage{Op: "list.scan", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &domain.ErrStorage{Op: "list.rows", Err: err}
	}
	return out, total, nil
}

func (s *TicketStore) Count(ctx context.Context, filter domain.TicketFilter) (int, error) {
	_, total, err := s.List(ctx, filter)
	return total, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

// UpdateState validates the requested transition against the state
// machine, then writes the new state and its audit event in a single
// transaction, gated by optimistic concurrency on expected_updated_at.
func (s *TicketStore) UpdateState(ctx context.Context, id string, newState domain.TicketState, expectedUpdatedAt time.Time) (domain.Ticket, error) {
	var result domain.Ticket

	err := s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ? AND deleted_at IS NULL", id)
		existing, err := scanTicketRow(row.Scan)
		if err != nil {
			if err == sql.ErrNoRows {
				return &domain.ErrNotFound{Kind: "ticket", ID: id}
			}
			return &domain.ErrStorage{Op: "update_state.get", Err: err}
		}

		if !existing.UpdatedAt.Equal(expectedUpdatedAt) {
			return &domain.ErrConflictingUpdate{ID: id}
		}

		if err := statemachine.Validate(existing.State, newState); err != nil {
			return err
		}

		newStateJSON, err := json.Marshal(newState)
		if err != nil {
			return &domain.ErrStorage{Op: "update_state.marshal", Err: err}
		}

		now := nowUTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE tickets SET state_type = ?, state_json = ?, updated_at = ?
			WHERE id = ? AND updated_at = ?
		`, string(newState.Type), string(newStateJSON), now, id, expectedUpdatedAt)
		if err != nil {
			return &domain.ErrStorage{Op: "update_state.update", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &domain.ErrStorage{Op: "update_state.rows_affected", Err: err}
		}
		if affected == 0 {
			return &domain.ErrConflictingUpdate{ID: id}
		}

		payload, err := json.Marshal(domain.StateChangedPayload{FromState: existing.State.Type, ToState: newState.Type})
		if err != nil {
			return &domain.ErrStorage{Op: "update_state.audit_marshal", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_events (timestamp, event_kind, ticket_id, user_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, now, string(domain.EventTicketStateChanged), id, "", payload); err != nil {
			return &domain.ErrStorage{Op: "update_state.audit_insert", Err: err}
		}

		result = existing
		result.State = newState
		result.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return result, nil
}

// UpdateProgress refreshes a ticket's state payload in place without
// writing an audit event and without optimistic-concurrency gating. It
// exists for the sub-fields §4.8/§4.9 explicitly exempt from audit
// logging (a Downloading ticket's percent/speed/eta, a Converting
// ticket's current_idx/current_name, a Placing ticket's files_placed):
// "these updates do not write audit events; only state-type changes do."
// The caller is responsible for only calling this while the ticket's
// state Type is unchanged from what it last observed.
func (s *TicketStore) UpdateProgress(ctx context.Context, id string, newState domain.TicketState) (domain.Ticket, error) {
	var result domain.Ticket
	err := s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ? AND deleted_at IS NULL", id)
		existing, err := scanTicketRow(row.Scan)
		if err != nil {
			if err == sql.ErrNoRows {
				return &domain.ErrNotFound{Kind: "ticket", ID: id}
			}
			return &domain.ErrStorage{Op: "update_progress.get", Err: err}
		}
		if existing.State.Type != newState.Type {
			return &domain.ErrIllegalTransition{From: existing.State.Type, To: newState.Type}
		}

		newStateJSON, err := json.Marshal(newState)
		if err != nil {
			return &domain.ErrStorage{Op: "update_progress.marshal", Err: err}
		}
		now := nowUTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE tickets SET state_json = ?, updated_at = ? WHERE id = ?
		`, string(newStateJSON), now, id); err != nil {
			return &domain.ErrStorage{Op: "update_progress.update", Err: err}
		}

		result = existing
		result.State = newState
		result.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return result, nil
}

func (s *TicketStore) Delete(ctx context.Context, id string, hard bool) error {
	return s.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if hard {
			res, err = tx.ExecContext(ctx, "DELETE FROM tickets WHERE id = ?", id)
		} else {
			res, err = tx.ExecContext(ctx, "UPDATE tickets SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", nowUTC(), id)
		}
		if err != nil {
			return &domain.ErrStorage{Op: "delete", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &domain.ErrStorage{Op: "delete.rows_affected", Err: err}
		}
		if affected == 0 {
			return &domain.ErrNotFound{Kind: "ticket", ID: id}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_events (timestamp, event_kind, ticket_id, user_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, nowUTC(), string(domain.EventTicketDeleted), id, "", []byte("{}"))
		if err != nil {
			return &domain.ErrStorage{Op: "delete.audit", Err: err}
		}
		return nil
	})
}
