// Package errors provides error handling for bidsevents.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, wrapping with context, and user-facing hints.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "index dataset")
//	}
//
//	return errors.WithHint(err, "set HEDVersion in dataset_description.json")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// Common sentinel errors. Typed errors in the owning packages match these
// with errors.Is so callers can branch on kind without importing the type.
var (
	// ErrMalformedName indicates a filename without parseable entity segments.
	ErrMalformedName = New("malformed name")

	// ErrDuplicateKey indicates two files collapsed to the same composite key.
	ErrDuplicateKey = New("duplicate key")

	// ErrSchemaVersion indicates a missing or unparseable dataset schema version.
	ErrSchemaVersion = New("schema version")

	// ErrMalformedDocument indicates a metadata document that fails structural parse.
	ErrMalformedDocument = New("malformed document")
)
