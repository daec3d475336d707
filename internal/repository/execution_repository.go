package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/execution"
	mp_errors "marketpulse/pkg/errors"
)

type executionRepository struct {
	db DBTX
}

func NewExecutionRepository(db DBTX) ExecutionRepository {
	return &executionRepository{db: db}
}

const executionColumns = `request_id, tenant_id, workflow_id, event_type, status, related_entity_id, user_id, result_payload, error_detail, created_at, updated_at, completed_at`

func (r *executionRepository) Create(ctx context.Context, rec *execution.ExecutionRecord) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO execution_records (`+executionColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `,
		rec.RequestID,
		rec.TenantID,
		rec.WorkflowID,
		rec.EventType,
		rec.Status,
		uuidPtr(rec.RelatedEntityID),
		uuidPtr(rec.UserID),
		rawOrNil(rec.ResultPayload),
		rec.ErrorDetail,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// The request id is generated from 128 random bits; a collision
			// is a generation bug, never something to retry into a second
			// identity.
			return fmt.Errorf("request id %s collision: %w", rec.RequestID, mp_errors.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (r *executionRepository) GetByRequestID(ctx context.Context, tenantID uuid.UUID, requestID string) (execution.ExecutionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+executionColumns+`
        FROM execution_records
        WHERE tenant_id = $1 AND request_id = $2
    `, tenantID, requestID)
	rec, err := scanExecutionRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return execution.ExecutionRecord{}, mp_errors.ErrNotFound
	}
	return rec, err
}

func (r *executionRepository) UpdateStatus(ctx context.Context, tenantID uuid.UUID, requestID string, status execution.Status, result json.RawMessage, errDetail *string) (execution.ExecutionRecord, error) {
	if !status.IsValid() {
		return execution.ExecutionRecord{}, mp_errors.ErrInvalidInput
	}

	// Conditional update: only non-terminal rows qualify. Two concurrent
	// reconcilers for the same request race on this single statement and
	// exactly one wins; the loser observes an already-finalized row.
	row := r.db.QueryRowContext(ctx, `
        UPDATE execution_records
        SET status = $3,
            result_payload = COALESCE($4, result_payload),
            error_detail = COALESCE($5, error_detail),
            updated_at = $6,
            completed_at = CASE WHEN $7 THEN $6 ELSE completed_at END
        WHERE tenant_id = $1 AND request_id = $2
          AND status IN ('PENDING','PROCESSING')
        RETURNING `+executionColumns+`
    `, tenantID, requestID, status, rawOrNil(result), errDetail, time.Now().UTC(), status.IsTerminal())

	rec, err := scanExecutionRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "never existed for this tenant" from "already terminal".
		existing, getErr := r.GetByRequestID(ctx, tenantID, requestID)
		if getErr != nil {
			return execution.ExecutionRecord{}, getErr
		}
		return existing, mp_errors.ErrAlreadyFinalized
	}
	return rec, err
}

func (r *executionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *execution.Status, limit int) ([]execution.ExecutionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
        SELECT ` + executionColumns + `
        FROM execution_records
        WHERE tenant_id = $1
    `
	args := []interface{}{tenantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []execution.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecutionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanExecutionRow(scan func(dest ...interface{}) error) (execution.ExecutionRecord, error) {
	var (
		rec             execution.ExecutionRecord
		relatedEntityID uuid.NullUUID
		userID          uuid.NullUUID
		resultPayload   []byte
		errorDetail     sql.NullString
		completedAt     sql.NullTime
	)
	err := scan(
		&rec.RequestID,
		&rec.TenantID,
		&rec.WorkflowID,
		&rec.EventType,
		&rec.Status,
		&relatedEntityID,
		&userID,
		&resultPayload,
		&errorDetail,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return execution.ExecutionRecord{}, err
	}
	if relatedEntityID.Valid {
		rec.RelatedEntityID = &relatedEntityID.UUID
	}
	if userID.Valid {
		rec.UserID = &userID.UUID
	}
	if len(resultPayload) > 0 {
		rec.ResultPayload = json.RawMessage(resultPayload)
	}
	if errorDetail.Valid {
		rec.ErrorDetail = &errorDetail.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return rec, nil
}

func uuidPtr(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// rawOrNil maps an empty payload to SQL NULL so COALESCE keeps the stored value.
func rawOrNil(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
