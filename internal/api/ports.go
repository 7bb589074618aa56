// Package api defines the outbound ports used to reach the operations
// backend, and the errors every adapter reports through them.
package api

import (
	"context"

	"operaciones/internal/core"
)

// Ports for outbound adapters.
type (
	// OperationLister returns operations filtered by name or identification.
	OperationLister interface {
		// List returns every operation when search is empty.
		List(ctx context.Context, search string) ([]core.Operation, error)
	}

	OperationReader interface {
		Get(ctx context.Context, id int64) (core.Operation, error)
	}

	OperationWriter interface {
		Create(ctx context.Context, op core.Operation) (core.Operation, error)
		// Update replaces every editable field of the operation.
		Update(ctx context.Context, id int64, op core.Operation) (core.Operation, error)
	}

	OperationDeleter interface {
		Delete(ctx context.Context, id int64) error
	}

	// CreditTypeReader serves the read-only credit type catalogue.
	CreditTypeReader interface {
		ListCreditTypes(ctx context.Context) ([]core.CreditType, error)
	}

	// Repository is the full contract of the operations backend.
	Repository interface {
		OperationLister
		OperationReader
		OperationWriter
		OperationDeleter
		CreditTypeReader
	}
)
