// Package audit records one entry per pipeline invocation.
//
// # Interface Design
//
// A [Record] is built from a finished [regpack.Outcome]. It identifies the
// invocation, its terminal stage, the failure kind if any, and digests of the
// input document and the produced archive. Records never contain documents,
// archives, passwords or key material.
//
// [Store] persists records. The mongodb sub-package provides a MongoDB
// implementation and [MemoryStore] keeps records in memory for tests and for
// runs without a database.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/regpack"
)

// ErrDuplicate is returned when a record with the same invocation ID exists
var ErrDuplicate = errors.New("audit record already exists")

// Store persists audit records
type Store interface {
	// Save stores a new record
	Save(ctx context.Context, record *Record) error

	// Get returns the record of an invocation, or nil if there is none
	Get(ctx context.Context, invocationID string) (*Record, error)

	// List returns records, most recent first
	List(ctx context.Context, filter *Filter) ([]*Record, error)

	// Close releases storage resources
	Close(ctx context.Context) error
}

// Record is the audit entry of one invocation
type Record struct {
	ID      string        `bson:"_id" json:"id"`
	Status  regpack.Stage `bson:"status" json:"status"`
	Reached regpack.Stage `bson:"reached" json:"reached"`

	FailureKind     failure.Kind     `bson:"failure_kind,omitempty" json:"failure_kind,omitempty"`
	FailureCategory failure.Category `bson:"failure_category,omitempty" json:"failure_category,omitempty"`
	FailureMessage  string           `bson:"failure_message,omitempty" json:"failure_message,omitempty"`

	SignatureMethod string `bson:"signature_method,omitempty" json:"signature_method,omitempty"`
	EntryName       string `bson:"entry_name,omitempty" json:"entry_name,omitempty"`
	DocumentSHA256  string `bson:"document_sha256" json:"document_sha256"`
	ArchiveSHA256   string `bson:"archive_sha256,omitempty" json:"archive_sha256,omitempty"`
	ArchiveSize     int    `bson:"archive_size,omitempty" json:"archive_size,omitempty"`

	SignerSubject string `bson:"signer_subject,omitempty" json:"signer_subject,omitempty"`
	SignerSerial  string `bson:"signer_serial,omitempty" json:"signer_serial,omitempty"`
	KeyAlgorithm  string `bson:"key_algorithm,omitempty" json:"key_algorithm,omitempty"`

	Warnings   []string  `bson:"warnings,omitempty" json:"warnings,omitempty"`
	RecordedAt time.Time `bson:"recorded_at" json:"recorded_at"`
}

// Filter for listing records
type Filter struct {
	Status      regpack.Stage
	FailureKind failure.Kind
	Since       *time.Time
	Limit       int
	Offset      int
}

// NewRecord builds the audit record of outcome
func NewRecord(outcome *regpack.Outcome, at time.Time) *Record {
	md := outcome.Metadata
	r := &Record{
		ID:              md.InvocationID,
		Status:          outcome.Stage,
		Reached:         outcome.Reached,
		SignatureMethod: string(md.SignatureMethod),
		EntryName:       md.EntryName,
		DocumentSHA256:  md.DocumentSHA256,
		ArchiveSHA256:   md.ArchiveSHA256,
		ArchiveSize:     len(outcome.Archive),
		SignerSubject:   md.SignerSubject,
		SignerSerial:    md.SignerSerial,
		KeyAlgorithm:    md.KeyAlgorithm,
		Warnings:        append([]string(nil), md.Warnings...),
		RecordedAt:      at.UTC(),
	}
	if f := outcome.Failure; f != nil {
		r.FailureKind = f.Kind
		r.FailureCategory = f.Kind.Category()
		r.FailureMessage = f.Error()
	}
	return r
}

func (f *Filter) matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.FailureKind != "" && r.FailureKind != f.FailureKind {
		return false
	}
	if f.Since != nil && r.RecordedAt.Before(*f.Since) {
		return false
	}
	return true
}
