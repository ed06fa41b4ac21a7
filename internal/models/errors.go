package models

import (
	"fmt"
	"strings"
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// ValidationErrors lists every failing field of one validated input.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the failing fields in order.
func (ve ValidationErrors) Fields() []string {
	out := make([]string, 0, len(ve))
	for _, e := range ve {
		out = append(out, e.Field)
	}
	return out
}

func (ve ValidationErrors) IsTransient() bool {
	return false
}

// NotFoundError indicates a record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// CountryNotFoundError indicates the country (name or ISO code) is not in the country table.
// It is raised before any record lookup or body validation.
type CountryNotFoundError struct {
	Country string
}

func (e *CountryNotFoundError) Error() string {
	return fmt.Sprintf("country not found: %s", e.Country)
}

func (e *CountryNotFoundError) IsTransient() bool {
	return false
}

// ConflictError indicates a record with the same key already exists
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

func (e *ConflictError) IsTransient() bool {
	return false
}

// InvalidReferenceError indicates an identity input that cannot be resolved:
// an ambiguous ISO code or an unrecognized continent.
type InvalidReferenceError struct {
	Kind  string
	Value string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid %s reference: %s", e.Kind, e.Value)
}

func (e *InvalidReferenceError) IsTransient() bool {
	return false
}

// UpstreamFetchError indicates the bulk ingest source could not be fetched
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true as the source may recover
func (e *UpstreamFetchError) IsTransient() bool {
	return true
}

// SerializationError indicates a successful result could not be encoded
type SerializationError struct {
	Format string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func (e *SerializationError) IsTransient() bool {
	return false
}

// IngestRowError wraps the failure that aborted a bulk ingest at a given CSV row.
type IngestRowError struct {
	Row int
	Err error
}

func (e *IngestRowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *IngestRowError) Unwrap() error {
	return e.Err
}
