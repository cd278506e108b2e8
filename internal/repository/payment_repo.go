package repository

import (
	"context"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

type CreatePaymentInput struct {
	SessionID int64
	StudentID int64
	TutorID   int64
	Amount    float64
	Status    string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (session_id, student_id, tutor_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, session_id, student_id, tutor_id, amount, status, created_at
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, input.SessionID, input.StudentID, input.TutorID, input.Amount, input.Status).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID int64) (*models.Payment, error) {
	query := `
		SELECT id, session_id, student_id, tutor_id, amount, status, created_at
		FROM payments
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
	`

	var payment models.Payment
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.StudentID,
		&payment.TutorID,
		&payment.Amount,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) ListBySessionIDs(ctx context.Context, sessionIDs []int64) (map[int64]models.Payment, error) {
	payments := make(map[int64]models.Payment, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return payments, nil
	}

	query := `
		SELECT DISTINCT ON (session_id) id, session_id, student_id, tutor_id, amount, status, created_at
		FROM payments
		WHERE session_id = ANY($1)
		ORDER BY session_id, id DESC
	`

	rows, err := r.db.Query(ctx, query, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.SessionID,
			&payment.StudentID,
			&payment.TutorID,
			&payment.Amount,
			&payment.Status,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		payments[payment.SessionID] = payment
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// RefundBySessionID flags the session's payment as refunded. Missing payment
// rows are not an error: a refund on a never-paid session is a no-op.
func (r *PaymentRepository) RefundBySessionID(ctx context.Context, sessionID int64) error {
	query := `
		UPDATE payments
		SET status = 'refund'
		WHERE session_id = $1
	`
	_, err := r.db.Exec(ctx, query, sessionID)
	return err
}

// RefundBySessionIDs bulk-flags payments for the expiry sweep.
func (r *PaymentRepository) RefundBySessionIDs(ctx context.Context, sessionIDs []int64) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	query := `
		UPDATE payments
		SET status = 'refund'
		WHERE session_id = ANY($1)
	`
	_, err := r.db.Exec(ctx, query, sessionIDs)
	return err
}
