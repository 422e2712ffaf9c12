package change

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/metastore"
	"github.com/biscuitwizard/vcscore/refs"
	"github.com/biscuitwizard/vcscore/vcserr"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	db := openTestDB(t)
	return New(db, dump.TextParser{}, nil)
}

func objKey(name string) refs.RefKey { return refs.RefKey{Type: dump.TypeObject, Name: name} }

func TestDedupSameContentReusesDigest(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	d1, err := m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)
	working, _, _, err := m.Status()
	require.NoError(t, err)
	_, err = m.Approve(working)
	require.NoError(t, err)

	_, err = m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	d2, err := m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	count, err := m.objects.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	hist, err := m.refs.History(objKey("a"))
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, d1, hist[0].Digest)
	require.Equal(t, d2, hist[1].Digest)
}

func TestRenamePropagatesMeta(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)
	require.NoError(t, m.AddIgnoredProperty("a", "x"))

	d, found, err := m.Get(objKey("a"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, d.Properties, "the ignored property must disappear on read-back, not only at ingest")

	require.NoError(t, m.Rename(objKey("a"), objKey("b")))

	doc, err := m.currentMetaDoc("b")
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, doc.IgnoredProperties)

	doc, err = m.currentMetaDoc("a")
	require.NoError(t, err)
	require.Empty(t, doc.IgnoredProperties)

	d, found, err = m.Get(objKey("b"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, d.Properties)
}

func TestApproveThenConflict(t *testing.T) {
	m := newTestMachine(t)

	c1, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	c2, err := m.Create(AuthorInfo{UserID: "bob"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 2 endobject")
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	_, err = m.Approve(c1.ID)
	require.NoError(t, err)

	_, err = m.Approve(c2.ID)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindConflict))
}

func TestStashSwitchHidesUnapprovedEdit(t *testing.T) {
	m := newTestMachine(t)

	c1, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	_, err = m.Create(AuthorInfo{UserID: "bob"})
	require.NoError(t, err)
	_, err = m.Update(objKey("b"), "object b property y = 1 endobject")
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	require.NoError(t, m.Switch(c1.ID))

	working, ok, _, err := m.Status()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c1.ID, working)

	_, found, err := m.Get(objKey("b"), nil)
	require.NoError(t, err)
	require.False(t, found, "b's unapproved edit from the stashed c2 must not be visible while c1 is working")
}

func TestFilterAppliedOnIngest(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.AddIgnoredVerb("a", "look"))

	_, err = m.Update(objKey("a"), "object a property x = 1 verb look code endverb endobject")
	require.NoError(t, err)

	d, found, err := m.Get(objKey("a"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, d.Verbs)
	require.Len(t, d.Properties, 1)

	// idempotent: filtering the already-filtered doc again changes nothing
	doc, err := m.currentMetaDoc("a")
	require.NoError(t, err)
	require.Equal(t, d, metastore.Filter(d, doc))
}

// TestFilterAppliedOnReadback adds the ignore rule *after* the object
// was already ingested unfiltered, so only Get's own read-back
// filtering (not ingest-time filtering) can be responsible for the
// verb's absence (spec.md §4.4).
func TestFilterAppliedOnReadback(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 verb look code endverb endobject")
	require.NoError(t, err)

	d, found, err := m.Get(objKey("a"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, d.Verbs, 1, "nothing ignored yet, the verb must still read back")

	require.NoError(t, m.AddIgnoredVerb("a", "look"))

	d, found, err = m.Get(objKey("a"), nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, d.Verbs, "an ignore rule added after ingest must still be applied on read-back")
	require.Len(t, d.Properties, 1)
}

// TestCalcDeltaReflectsCurrentMeta exercises the diff-side half of the
// same rule: an object edit recorded before the ignore rule existed
// must report a filtered delta once the rule is added later in the
// same draft, since CalcDelta re-expresses its digests against current
// meta, not the meta that was current when the edit was recorded.
func TestCalcDeltaReflectsCurrentMeta(t *testing.T) {
	m := newTestMachine(t)

	c, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 verb look code endverb endobject")
	require.NoError(t, err)

	effects, err := m.CalcDelta(c.ID)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	unfilteredPost := effects[0].PostDigest

	require.NoError(t, m.AddIgnoredVerb("a", "look"))

	effects, err = m.CalcDelta(c.ID)
	require.NoError(t, err)
	require.Len(t, effects, 2, "the meta edit itself now also appears as a second effect of the same change")

	var objectPost string
	for _, eff := range effects {
		if eff.RefKey == objKey("a") {
			objectPost = eff.PostDigest
		}
	}
	require.NotEmpty(t, objectPost)
	require.NotEqual(t, unfilteredPost, objectPost, "the recomputed post-digest must change once the verb is ignored")
}

func TestAbandonRetainsResolverHistory(t *testing.T) {
	m := newTestMachine(t)

	c1, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)

	require.NoError(t, m.Abandon(c1.ID))

	hist, err := m.refs.History(objKey("a"))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, c1.ID, hist[0].ChangeID)

	ch, err := m.GetChange(c1.ID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, ch.State)

	_, found, err := m.Get(objKey("a"), nil)
	require.NoError(t, err)
	require.False(t, found, "an abandoned change's edits are never approved-visible")
}

func TestDeleteThenApproveConflictsOnStaleDraft(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)
	working, _, _, err := m.Status()
	require.NoError(t, err)
	_, err = m.Approve(working)
	require.NoError(t, err)

	cDelete, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(objKey("a")))
	require.NoError(t, m.Stash())

	cEdit, err := m.Create(AuthorInfo{UserID: "bob"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 2 endobject")
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	_, err = m.Approve(cDelete.ID)
	require.NoError(t, err)

	_, err = m.Approve(cEdit.ID)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindConflict))
}

func TestResetAbandonsOnlyWorkingDraft(t *testing.T) {
	m := newTestMachine(t)

	cStashed, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.Stash())

	cWorking, err := m.Create(AuthorInfo{UserID: "bob"})
	require.NoError(t, err)

	require.NoError(t, m.Reset())

	ch, err := m.GetChange(cWorking.ID)
	require.NoError(t, err)
	require.Equal(t, StateAbandoned, ch.State)

	ch, err = m.GetChange(cStashed.ID)
	require.NoError(t, err)
	require.Equal(t, StateStashed, ch.State)

	_, ok, _, err := m.Status()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubmitRequiresApproved(t *testing.T) {
	m := newTestMachine(t)

	c, err := m.Create(AuthorInfo{UserID: "alice"})
	require.NoError(t, err)
	_, err = m.Update(objKey("a"), "object a property x = 1 endobject")
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), c.ID)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindIllegalTransition))

	_, err = m.Approve(c.ID)
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), c.ID)
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindUpstreamFailed))
}
