package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no product carries the requested SKU.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrStockConflict indicates a stock write lost its precondition,
	// either an expected-value mismatch or a decrement below zero.
	ErrStockConflict = errors.New("catalog: stock conflict")
	// ErrDuplicateSKU indicates an insert collided on the sku column.
	ErrDuplicateSKU = errors.New("catalog: duplicate sku")
)

// Query stages reported by StoreError.
const (
	StageCount  = "count"
	StageFetch  = "fetch"
	StageStats  = "stats"
	StageUpdate = "update"
)

// StoreError wraps a storage failure with the query stage it happened
// in. Validation always runs before any store work, so a StoreError
// never means a bad request.
type StoreError struct {
	Stage string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog: store %s failed: %v", e.Stage, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(stage string, err error) error {
	return &StoreError{Stage: stage, Err: err}
}
