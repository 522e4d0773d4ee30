package store

import (
	"context"
)

// Driver is an interface for store driver.
// It contains all methods that a schedule backend should implement.
type Driver interface {
	Close() error

	// ListRecords returns every schedule record of the term.
	ListRecords(ctx context.Context, find *FindRecord) ([]Record, error)
	// CreateRecord persists a record and returns it as stored, id included.
	CreateRecord(ctx context.Context, create *CreateRecord) (Record, error)
	// DeleteRecord removes a record. It returns ErrNotFound for unknown ids.
	DeleteRecord(ctx context.Context, delete *DeleteRecord) error
}
