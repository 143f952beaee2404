package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

type PaymentAuditRepository struct {
	db *sql.DB
}

func NewPaymentAuditRepository(db *sql.DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

func (r *PaymentAuditRepository) Append(ctx context.Context, entry domain.PaymentAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_audit (id, session_id, order_id, payment_id, kind, status, amount, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		entry.ID, entry.SessionID, entry.OrderID, nullString(entry.PaymentID), nullString(string(entry.Kind)),
		string(entry.Status), entry.Amount, nullString(entry.Detail), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append payment audit: %w", err)
	}
	return nil
}

func (r *PaymentAuditRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, order_id, payment_id, kind, status, amount, detail, created_at
FROM payment_audit
WHERE order_id = $1
ORDER BY created_at ASC
`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment audit: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PaymentAuditEntry, 0)
	for rows.Next() {
		var (
			entry                   domain.PaymentAuditEntry
			paymentID, kind, detail sql.NullString
			status                  string
		)
		if err := rows.Scan(
			&entry.ID, &entry.SessionID, &entry.OrderID, &paymentID, &kind,
			&status, &entry.Amount, &detail, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment audit: %w", err)
		}
		entry.PaymentID = paymentID.String
		entry.Kind = domain.PaymentKind(kind.String)
		entry.Status = domain.AuditStatus(status)
		entry.Detail = detail.String
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment audit: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
