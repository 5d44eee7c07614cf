package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Tovborg/TovborgFinance/internal/domain/requisition"
)

// RequisitionRepository implements the requisition.Repository interface for PostgreSQL
type RequisitionRepository struct {
	db *DB
}

// NewRequisitionRepository creates a new PostgreSQL requisition repository
func NewRequisitionRepository(db *DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

const requisitionColumns = `id, requisition_id, institution_id, reference, link, status, account_selection, user_id, created_at`

// Create persists a new requisition
func (r *RequisitionRepository) Create(ctx context.Context, params requisition.CreateParams) (*requisition.Requisition, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid requisition parameters: %w", err)
	}

	query := `
		INSERT INTO bank_requisitions (requisition_id, institution_id, reference, link, status, account_selection, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + requisitionColumns

	req, err := scanRequisition(r.db.QueryRowContext(ctx, query,
		params.RequisitionID, params.InstitutionID, params.Reference,
		params.Link, params.Status, params.AccountSelection, params.UserID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create requisition: %w", err)
	}
	return req, nil
}

// GetByReference retrieves a requisition by its internal correlation reference
func (r *RequisitionRepository) GetByReference(ctx context.Context, reference string) (*requisition.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM bank_requisitions WHERE reference = $1`

	req, err := scanRequisition(r.db.QueryRowContext(ctx, query, reference))
	if err == sql.ErrNoRows {
		return nil, requisition.ErrRequisitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return req, nil
}

// ListByUserID retrieves all requisitions belonging to a user, newest first
func (r *RequisitionRepository) ListByUserID(ctx context.Context, userID int64) ([]*requisition.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM bank_requisitions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var requisitions []*requisition.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		requisitions = append(requisitions, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requisitions: %w", err)
	}

	return requisitions, nil
}

// UpdateStatus updates the provider-reported status of a requisition
func (r *RequisitionRepository) UpdateStatus(ctx context.Context, reference, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bank_requisitions SET status = $1 WHERE reference = $2`,
		status, reference,
	)
	if err != nil {
		return fmt.Errorf("failed to update requisition status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return requisition.ErrRequisitionNotFound
	}
	return nil
}

// Delete removes a requisition; accounts and transactions cascade in storage
func (r *RequisitionRepository) Delete(ctx context.Context, reference string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bank_requisitions WHERE reference = $1`, reference)
	if err != nil {
		return fmt.Errorf("failed to delete requisition: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return requisition.ErrRequisitionNotFound
	}
	return nil
}

func scanRequisition(row rowScanner) (*requisition.Requisition, error) {
	var req requisition.Requisition
	err := row.Scan(
		&req.ID, &req.RequisitionID, &req.InstitutionID, &req.Reference,
		&req.Link, &req.Status, &req.AccountSelection, &req.UserID, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
