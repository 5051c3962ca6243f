package domain

import "errors"

var (
	// ErrNoData indicates a provider responded without usable data for an
	// item. Callers skip the item and continue the batch.
	ErrNoData = errors.New("no data")

	// ErrEmptyResult indicates a query executed successfully but returned
	// zero rows. Surfaced as a per-query error, never aborts the batch.
	ErrEmptyResult = errors.New("no data returned")

	// ErrMissingColumn indicates a CSV file lacks a recognizable date or
	// value column and cannot be used for validation.
	ErrMissingColumn = errors.New("required column not found")
)
