package surrealdb

import (
	"strings"

	"github.com/hbarro/lares/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// Thrown-error prefixes used inside transaction blocks. A THROW aborts the
// whole block, so nothing before it is applied.
const (
	throwConsistency = "consistency:"
	throwValidation  = "validation:"
)

// isNotFoundError reports whether err is SurrealDB's way of saying the
// record does not exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no record")
}

// isAlreadyExistsError reports whether a CREATE failed because the record
// id is taken. Used by the create-if-absent invoice path.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains")
}

// mapQueryErr converts a failed query into the typed taxonomy. THROWs with
// the known prefixes become ConsistencyError or ValidationError; anything
// else is a StoreError surfaced verbatim.
func mapQueryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if idx := strings.Index(msg, throwConsistency); idx >= 0 {
		return &models.ConsistencyError{Reason: strings.TrimSpace(msg[idx+len(throwConsistency):])}
	}
	if idx := strings.Index(msg, throwValidation); idx >= 0 {
		return &models.ValidationError{Reason: strings.TrimSpace(msg[idx+len(throwValidation):])}
	}
	return &models.StoreError{Op: op, Err: err}
}

// firstResult unwraps the first row of the first statement result, or nil.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}

// allResults unwraps every row of the first statement result.
func allResults[T any](results *[]surrealdb.QueryResult[[]T]) []*T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	var mapped []*T
	for i := range (*results)[0].Result {
		mapped = append(mapped, &(*results)[0].Result[i])
	}
	return mapped
}
