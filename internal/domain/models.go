package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is one step in a transaction's lifecycle. The full history of a
// transaction is the ordered list of StatusEvents carrying these values.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no further status may follow s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Account represents a user's balance in the ledger.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is the immutable record of a transfer intent. It is created
// exactly once, at reservation time, and never updated afterwards.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	SourceAccountID int64           `json:"source_account_id"`
	DestAccountID   int64           `json:"dest_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StatusEvent is one append-only entry in a transaction's status history.
// Events are never updated or deleted; audit tooling depends on that.
type StatusEvent struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// SettlementIntent is the queue payload handed from the initiator to the
// settlement worker. Amount rides as a decimal so no precision is lost
// between the two halves of the pipeline.
type SettlementIntent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	SrcID         int64           `json:"src_id"`
	DestID        int64           `json:"dest_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransactionInfo is what the caller gets back from a successful reservation.
type TransactionInfo struct {
	Destination string          `json:"destination"`
	Status      Status          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
}
