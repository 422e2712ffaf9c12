// Package change implements the change lifecycle state machine of
// spec.md §4.5: create -> edit -> stash -> approve -> submit/abandon,
// plus the workspace of stashed changes (§4.7) and the meta/object
// lifecycle coupling of §4.4, issued from the single call-site §9
// mandates rather than via listener callbacks.
package change

import (
	"time"

	"github.com/biscuitwizard/vcscore/refs"
)

// State is one node of the lifecycle in spec.md §4.5.
type State string

const (
	StateDraft     State = "Draft"
	StateStashed   State = "Stashed"
	StateApproved  State = "Approved"
	StateAbandoned State = "Abandoned"
)

// Terminal reports whether no further transition is legal.
func (s State) Terminal() bool { return s == StateApproved || s == StateAbandoned }

// AuthorInfo supplements spec.md's bare author-user-id with the
// external/registered distinction original_source/vcs-worker tracks
// (operations/user/stat_op.rs, tests/operations/user/external_user_tests.rs).
type AuthorInfo struct {
	UserID   string `json:"user_id"`
	External bool   `json:"external"`
}

// DeltaEntry is one added-or-modified RefKey: the digest that was
// approved-visible before this change touched it (empty if the name
// didn't exist yet) and the digest this change produced.
type DeltaEntry struct {
	RefKey     refs.RefKey `json:"refkey"`
	PreDigest  string      `json:"pre_digest"`
	PostDigest string      `json:"post_digest"`
}

// DeleteEntry is one deleted RefKey and the digest it had immediately
// before deletion.
type DeleteEntry struct {
	RefKey    refs.RefKey `json:"refkey"`
	PreDigest string      `json:"pre_digest"`
}

// RenameEntry is one rename pair and the old name's pre-image digest,
// used identically to DeleteEntry/DeltaEntry for conflict detection.
type RenameEntry struct {
	Old       refs.RefKey `json:"old"`
	New       refs.RefKey `json:"new"`
	PreDigest string      `json:"pre_digest"`
}

// Change is one author's bundle of pending or approved edits.
// Invariant: a RefKey appears in at most one of Added/Modified/Deleted/
// Renamed at a time (spec.md §3); Approved and Abandoned are terminal.
type Change struct {
	ID                  string                 `json:"id"`
	Author              AuthorInfo             `json:"author"`
	ParentIndexPosition *uint64                `json:"parent_index_position,omitempty"`
	Added               map[string]DeltaEntry  `json:"added"`
	Modified            map[string]DeltaEntry  `json:"modified"`
	Deleted             map[string]DeleteEntry `json:"deleted"`
	Renamed             map[string]RenameEntry `json:"renamed"` // keyed by Old.String()
	State               State                  `json:"state"`
	Submitted           bool                   `json:"submitted"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func newChange(id string, author AuthorInfo, parent *uint64) *Change {
	now := time.Now().UTC()
	return &Change{
		ID:                  id,
		Author:              author,
		ParentIndexPosition: parent,
		Added:               map[string]DeltaEntry{},
		Modified:            map[string]DeltaEntry{},
		Deleted:             map[string]DeleteEntry{},
		Renamed:             map[string]RenameEntry{},
		State:               StateDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// forget removes k from whichever of Added/Modified/Deleted/Renamed it
// currently occupies, preserving the at-most-one-set invariant before
// a new classification is recorded.
func (c *Change) forget(k refs.RefKey) {
	key := k.String()
	delete(c.Added, key)
	delete(c.Modified, key)
	delete(c.Deleted, key)
	delete(c.Renamed, key)
}

// touches reports whether k appears in any delta set.
func (c *Change) touches(k refs.RefKey) bool {
	key := k.String()
	if _, ok := c.Added[key]; ok {
		return true
	}
	if _, ok := c.Modified[key]; ok {
		return true
	}
	if _, ok := c.Deleted[key]; ok {
		return true
	}
	if _, ok := c.Renamed[key]; ok {
		return true
	}
	return false
}

// Effect computes the "effect" of the change per spec.md §4.5: the
// multiset of (refkey, pre-digest, post-digest) tuples derivable from
// its delta sets. Deletions report an empty post-digest; renames
// report the pre-digest carried across under the new key.
type Effect struct {
	RefKey     refs.RefKey `json:"refkey"`
	PreDigest  string      `json:"pre_digest"`
	PostDigest string      `json:"post_digest"`
}

func (c *Change) effects() []Effect {
	var out []Effect
	for _, e := range c.Added {
		out = append(out, Effect{RefKey: e.RefKey, PreDigest: e.PreDigest, PostDigest: e.PostDigest})
	}
	for _, e := range c.Modified {
		out = append(out, Effect{RefKey: e.RefKey, PreDigest: e.PreDigest, PostDigest: e.PostDigest})
	}
	for _, e := range c.Deleted {
		out = append(out, Effect{RefKey: e.RefKey, PreDigest: e.PreDigest, PostDigest: ""})
	}
	for _, e := range c.Renamed {
		out = append(out, Effect{RefKey: e.New, PreDigest: e.PreDigest, PostDigest: e.PreDigest})
	}
	return out
}
