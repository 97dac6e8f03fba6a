// Package store persists records in an append-only, content-addressed log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vaultsandbox/peermail/internal/record"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("store: record not found")

// Record is a decoded log entry with its position.
type Record struct {
	ID        record.ID
	Seq       uint64
	Entry     record.Entry
	CreatedAt time.Time
}

// Log is an append-only record log.
//
// Append is atomic and idempotent: appending a record already present
// returns its existing id. Query returns records of one kind in append
// order.
type Log interface {
	Append(ctx context.Context, e record.Entry) (record.ID, error)
	Query(ctx context.Context, kind record.Kind) ([]Record, error)
	Get(ctx context.Context, id record.ID) (Record, error)
}

// QueryAs returns the entries of kind decoded as T, in append order.
func QueryAs[T record.Entry](ctx context.Context, log Log, kind record.Kind) ([]Typed[T], error) {
	records, err := log.Query(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]Typed[T], 0, len(records))
	for _, r := range records {
		v, ok := r.Entry.(T)
		if !ok {
			continue
		}
		out = append(out, Typed[T]{ID: r.ID, Seq: r.Seq, Value: v, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// GetAs fetches id and checks that it holds a T.
func GetAs[T record.Entry](ctx context.Context, log Log, id record.ID) (T, error) {
	var zero T
	r, err := log.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	v, ok := r.Entry.(T)
	if !ok {
		return zero, ErrWrongKind
	}
	return v, nil
}

// ErrWrongKind is returned by GetAs when the record exists with another kind.
var ErrWrongKind = errors.New("store: record has a different kind")

// Typed is a Record whose entry has a known type.
type Typed[T record.Entry] struct {
	ID        record.ID
	Seq       uint64
	Value     T
	CreatedAt time.Time
}
