// Package store persists decision records. Two backends exist: a
// local sqlite file for the signed-out device scope and Postgres for
// per-user remote scope.
package store

import (
	"context"
	"errors"

	"decisio/api/internal/decision"
)

// Scope names which backend currently owns the record list.
type Scope string

const (
	ScopeLocal Scope = "local"
	ScopeUser  Scope = "user"
)

var (
	// ErrUnavailable wraps backend failures that should leave the
	// current scope untouched rather than surface as data loss.
	ErrUnavailable = errors.New("store unavailable")

	// ErrBulkDeleteUnsupported is returned by backends that refuse
	// wholesale deletion and require per-record removal.
	ErrBulkDeleteUnsupported = errors.New("bulk delete not supported for this scope")
)

// Backend is the persistence contract both scopes implement. OwnerID
// is ignored by the local backend and required by the remote one.
type Backend interface {
	LoadRecords(ctx context.Context, ownerID string) ([]decision.Record, error)
	UpsertRecord(ctx context.Context, ownerID string, rec decision.Record) error
	RemoveRecord(ctx context.Context, ownerID, recordID string) error
	ClearRecords(ctx context.Context, ownerID string) error
}

// Settings is the per-scope user preference document.
type Settings struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Theme       string `json:"theme"`
}
