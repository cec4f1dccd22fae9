package models

import "time"

// IdempotencyKey remembers which resource a client supplied key produced.
// The row is written in the same transaction as the resource, so it exists
// only for committed work.
type IdempotencyKey struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Scope      string    `gorm:"size:50;not null;uniqueIndex:idx_idempotency_scope_key" json:"scope"`
	RequestKey string    `gorm:"size:100;not null;uniqueIndex:idx_idempotency_scope_key" json:"request_key"`
	ResourceId int       `gorm:"not null" json:"resource_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const IdempotencyScopeInvoice = "invoice"
