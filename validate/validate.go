// Package validate is the boundary argument validation the dispatcher
// runs before any core call, grounded on
// original_source/vcs-worker/src/arg_validation.rs: names and refkeys
// must be non-empty, printable, and bounded in length before they ever
// reach refs/objectstore/change.
package validate

import (
	"unicode"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// MaxNameLength bounds object and change-field names, matching the
// conservative bound arg_validation.rs applies to identifiers coming
// off the wire.
const MaxNameLength = 256

// Name validates a bare identifier: a RefKey's Name, a meta property
// name, a verb name.
func Name(field, name string) error {
	if name == "" {
		return vcserr.New(vcserr.KindMalformedDump, field+" must not be empty")
	}
	if len(name) > MaxNameLength {
		return vcserr.New(vcserr.KindMalformedDump, field+" exceeds maximum length")
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return vcserr.New(vcserr.KindMalformedDump, field+" contains a non-printable character")
		}
	}
	return nil
}

// ObjectType validates that t is one of the closed set spec.md §3
// defines, rejecting anything a caller might invent.
func ObjectType(t dump.ObjectType) error {
	if !t.Valid() {
		return vcserr.New(vcserr.KindMalformedDump, "unknown object type").WithRef(string(t))
	}
	return nil
}

// RefKey validates both halves of a (type, name) pair.
func RefKey(t dump.ObjectType, name string) error {
	if err := ObjectType(t); err != nil {
		return err
	}
	return Name("refkey name", name)
}

// ChangeID validates a change-id argument supplied by a caller (as
// opposed to one this repository minted itself via uuid.New).
func ChangeID(id string) error {
	return Name("change id", id)
}
