// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrValidation means archive header constants do not match the selected format.
	ErrValidation = errors.New("archive validation failed")
	// ErrStructure means stored field values describe an impossible layout.
	ErrStructure = errors.New("malformed archive structure")
	// ErrNameEncoding means an archive name is empty, non-ASCII, or too long for the format.
	ErrNameEncoding = errors.New("invalid archive name")
	// ErrUnknownFormat means the format identifier is not one of the supported revisions.
	ErrUnknownFormat = errors.New("unknown archive format")
	// ErrUnsupportedCombination means the requested copy or compression setup cannot be stored by the format.
	ErrUnsupportedCombination = errors.New("unsupported option combination for format")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrEntryNotFound means no record carries the requested name.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrSizeOverflow means a size or offset does not fit the 32-bit archive fields.
	ErrSizeOverflow = errors.New("size exceeds 32-bit archive limit")
	// ErrEmptyInputs means no inputs provided for build.
	ErrEmptyInputs = errors.New("no inputs provided for build")
	// ErrDuplicateEntryPath means two inputs resolve to the same archive name.
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidRules means one or more path rules could not be compiled.
	ErrInvalidRules = errors.New("invalid path rules")
)

// ValidationField names the header constant that failed validation.
type ValidationField string

// Header constants checked by format validation.
const (
	FieldMagic       ValidationField = "magic"
	FieldVersion     ValidationField = "version"
	FieldBucketCount ValidationField = "bucket count"
)

// ValidationError reports one header constant that differs from the format.
type ValidationError struct {
	Field    ValidationField
	Expected uint32
	Actual   uint32
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == FieldMagic {
		exp, act := e.ExpectedMagic(), e.ActualMagic()
		return fmt.Sprintf("%s: %s mismatch: expected %q, got %q", ErrValidation, e.Field, exp[:], act[:])
	}

	return fmt.Sprintf("%s: %s mismatch: expected 0x%08x, got 0x%08x", ErrValidation, e.Field, e.Expected, e.Actual)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ExpectedMagic returns Expected as the four on-disk bytes.
func (e *ValidationError) ExpectedMagic() [4]byte {
	return magicBytes(e.Expected)
}

// ActualMagic returns Actual as the four on-disk bytes.
func (e *ValidationError) ActualMagic() [4]byte {
	return magicBytes(e.Actual)
}

// StructuralError reports stored values that imply reads outside the stream or
// otherwise inconsistent derived offsets.
type StructuralError struct {
	// Err is the underlying cause.
	Err error
	// Section names the archive region being decoded.
	Section string
	// Offset is the absolute stream offset where decoding failed.
	Offset int64
}

// Error implements error.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s at 0x%x: %v", ErrStructure, e.Section, e.Offset, e.Err)
}

// Unwrap returns ErrStructure and the underlying cause.
func (e *StructuralError) Unwrap() []error {
	return []error{ErrStructure, e.Err}
}

// NameError reports a logical name the format cannot store.
type NameError struct {
	Name   string
	Reason string
}

// Error implements error.
func (e *NameError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrNameEncoding, e.Name, e.Reason)
}

// Unwrap returns ErrNameEncoding.
func (e *NameError) Unwrap() error {
	return ErrNameEncoding
}

// structuralf builds a StructuralError with a formatted cause.
func structuralf(section string, offset int64, format string, args ...any) error {
	return &StructuralError{Section: section, Offset: offset, Err: fmt.Errorf(format, args...)}
}

// magicBytes converts a little-endian magic value back to its byte tag.
func magicBytes(v uint32) [4]byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], v)
	return out
}
