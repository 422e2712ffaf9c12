// Package dump defines the object-dump data model, the closed
// ObjectType enum, and the pure canonicalize/digest functions of
// spec.md §4.1. The dump-language parser itself is an external
// collaborator (spec.md §1); this package only declares the
// boundary contract it must satisfy.
package dump

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ObjectType is the closed enumeration from spec.md §3. New entries
// are added here, never modeled via interface inheritance (spec.md §9).
type ObjectType string

const (
	TypeObject     ObjectType = "Object"
	TypeMetaObject ObjectType = "MetaObject"
)

func (t ObjectType) Valid() bool {
	switch t {
	case TypeObject, TypeMetaObject:
		return true
	default:
		return false
	}
}

// Property is one key/value member of an object dump.
type Property struct {
	Name  string
	Value string
}

// Verb is one named executable member of an object dump.
type Verb struct {
	Name string
	Code string
}

// Dump is the parsed form of one object's textual representation:
// parent pointer, properties, and verbs. Field order within Properties
// and Verbs is insignificant — Canonicalize is responsible for
// imposing a deterministic order.
type Dump struct {
	Name       string
	Parent     string
	Properties []Property
	Verbs      []Verb
}

// Clone returns a deep copy, so filtering (metastore.Filter) never
// mutates a caller's Dump in place.
func (d Dump) Clone() Dump {
	out := Dump{Name: d.Name, Parent: d.Parent}
	out.Properties = append([]Property(nil), d.Properties...)
	out.Verbs = append([]Verb(nil), d.Verbs...)
	return out
}

// Parser is the pure-function boundary spec.md §1 and §9 describe:
// invoked to turn dump text into a Dump, never cached (only its
// resulting digest is cached, per §9's design note).
type Parser interface {
	Parse(text string) (Dump, error)
}

// Canonicalize renders a Dump to deterministic bytes: properties and
// verbs sorted by name, fixed field ordering, no incidental whitespace
// differences. Canonicalize(Canonicalize(x)) == Canonicalize(x) holds
// because the output depends only on (Name, Parent, sorted members),
// never on input formatting.
func Canonicalize(d Dump) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "object %s\n", d.Name)
	if d.Parent != "" {
		fmt.Fprintf(&b, "parent %s\n", d.Parent)
	}

	props := append([]Property(nil), d.Properties...)
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	for _, p := range props {
		fmt.Fprintf(&b, "property %s = %s\n", p.Name, p.Value)
	}

	verbs := append([]Verb(nil), d.Verbs...)
	sort.Slice(verbs, func(i, j int) bool { return verbs[i].Name < verbs[j].Name })
	for _, v := range verbs {
		fmt.Fprintf(&b, "verb %s\n%s\nendverb\n", v.Name, v.Code)
	}
	fmt.Fprint(&b, "endobject\n")
	return []byte(b.String())
}

// Digest is the lowercase-hex SHA-256 of canonical bytes, used verbatim
// as an objectstore key per spec.md §6.
func Digest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
