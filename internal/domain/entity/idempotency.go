package entity

import "time"

// IdempotencyStatus estado de una llave de idempotencia.
type IdempotencyStatus string

const (
	IdempotencyStarted   IdempotencyStatus = "STARTED"
	IdempotencyFailed    IdempotencyStatus = "FAILED"
	IdempotencySucceeded IdempotencyStatus = "SUCCEEDED"
)

// IdempotencyRecord registra una operación externa reintentable.
// OperationKey es único; Result guarda el resultado serializado cuando la operación terminó.
type IdempotencyRecord struct {
	OperationKey string
	BusinessID   string
	Operation    string
	PayloadHash  string
	Status       IdempotencyStatus
	Result       []byte
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}
