// Package metastore is the per-object YAML side-channel of spec.md
// §4.4: ignore-lists for properties and verbs, consulted by the
// Change State Machine on ingest, read-back, and diff. The Doc itself
// is a normal MetaObject: Machine stores and versions its YAML
// encoding through the same objectstore/refs pipeline as every other
// object, so this package only deals in bytes and values, never a
// database.
package metastore

import (
	"sort"

	"github.com/ghodss/yaml"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// Doc is the YAML schema from spec.md §6: two optional sets, encoded
// as sorted string slices (duplicates coalesced, order irrelevant).
type Doc struct {
	IgnoredProperties []string `json:"ignored_properties,omitempty"`
	IgnoredVerbs      []string `json:"ignored_verbs,omitempty"`
}

func (d Doc) hasProperty(name string) bool { return contains(d.IgnoredProperties, name) }
func (d Doc) hasVerb(name string) bool     { return contains(d.IgnoredVerbs, name) }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func addSorted(set []string, v string) []string {
	if contains(set, v) {
		return set
	}
	set = append(set, v)
	sort.Strings(set)
	return set
}

func removeFrom(set []string, v string) []string {
	out := set[:0:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// Decode parses a MetaObject's stored YAML bytes into a Doc. Empty
// input decodes to the zero Doc (spec.md §4.4: "no meta yet" and
// "meta with empty ignore-lists" are the same unfiltered state).
func Decode(raw []byte) (Doc, error) {
	var d Doc
	if len(raw) == 0 {
		return d, nil
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Doc{}, vcserr.Wrap(vcserr.KindMalformedDump, "decode meta yaml", err)
	}
	return d, nil
}

// Encode serializes doc to the YAML bytes Machine content-addresses
// and stores as a MetaObject version.
func Encode(doc Doc) ([]byte, error) {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindMalformedDump, "encode meta yaml", err)
	}
	return raw, nil
}

// AddIgnoredProperty, AddIgnoredVerb, RemoveIgnoredProperty,
// RemoveIgnoredVerb, and Clear are the pure Doc edits behind the
// meta.* boundary operations of spec.md §4.4; Machine wraps each in
// the read-current/edit/store-new-version pipeline that gives them a
// Draft and an Approve step, exactly like an object edit.

func AddIgnoredProperty(doc Doc, property string) Doc {
	doc.IgnoredProperties = addSorted(doc.IgnoredProperties, property)
	return doc
}

func AddIgnoredVerb(doc Doc, verb string) Doc {
	doc.IgnoredVerbs = addSorted(doc.IgnoredVerbs, verb)
	return doc
}

func RemoveIgnoredProperty(doc Doc, property string) Doc {
	doc.IgnoredProperties = removeFrom(doc.IgnoredProperties, property)
	return doc
}

func RemoveIgnoredVerb(doc Doc, verb string) Doc {
	doc.IgnoredVerbs = removeFrom(doc.IgnoredVerbs, verb)
	return doc
}

func Clear(Doc) Doc { return Doc{} }

// Filter strips every property/verb named in doc's ignore lists from
// d, applied identically on ingest, read-back, and diff computation
// per spec.md §4.4. Filtering is idempotent: Filter(Filter(d, doc),
// doc) == Filter(d, doc), since the result simply no longer contains
// any ignored member to strip again.
func Filter(d dump.Dump, doc Doc) dump.Dump {
	out := d.Clone()
	if len(doc.IgnoredProperties) > 0 {
		kept := out.Properties[:0:0]
		for _, p := range out.Properties {
			if !doc.hasProperty(p.Name) {
				kept = append(kept, p)
			}
		}
		out.Properties = kept
	}
	if len(doc.IgnoredVerbs) > 0 {
		kept := out.Verbs[:0:0]
		for _, v := range out.Verbs {
			if !doc.hasVerb(v.Name) {
				kept = append(kept, v)
			}
		}
		out.Verbs = kept
	}
	return out
}
