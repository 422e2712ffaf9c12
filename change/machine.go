package change

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pborman/uuid"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/index"
	"github.com/biscuitwizard/vcscore/metastore"
	"github.com/biscuitwizard/vcscore/mirror"
	"github.com/biscuitwizard/vcscore/objectstore"
	"github.com/biscuitwizard/vcscore/refs"
	"github.com/biscuitwizard/vcscore/vcsdb"
	"github.com/biscuitwizard/vcscore/vcserr"
	"github.com/biscuitwizard/vcscore/vcslog"
)

var machineLog = vcslog.Root().With("component", "change")

// Machine is the Change State Machine of spec.md §4.5: the single
// call-site through which every ingest, approval, and lifecycle
// transition flows, so meta/object coupling (spec.md §4.4) and
// conflict detection (§4.5's "pre-image digest vs current approved
// digest" rule) stay centralized rather than scattered across
// listener callbacks.
type Machine struct {
	db      vcsdb.Database
	refs    *refs.Resolver
	objects *objectstore.Store
	index   *index.Index
	ws      *workspace
	mirror  mirror.Client
	parser  dump.Parser
}

// New wires a Machine over an already-open Database. mc may be nil, in
// which case submission always fails with UpstreamFailed (no upstream
// configured, per spec.md's "approved-but-unsubmitted is a valid
// terminal-ish state" note).
func New(db vcsdb.Database, parser dump.Parser, mc mirror.Client) *Machine {
	if mc == nil {
		mc = mirror.NoopClient{}
	}
	return &Machine{
		db:      db,
		refs:    refs.New(db),
		objects: objectstore.New(db),
		index:   index.New(db),
		ws:      newWorkspace(db),
		mirror:  mc,
		parser:  parser,
	}
}

func changeKey(id string) []byte { return []byte(id) }

func metaKeyFor(name string) refs.RefKey {
	return refs.RefKey{Type: dump.TypeMetaObject, Name: name}
}

func (m *Machine) loadChange(id string) (*Change, error) {
	raw, err := m.db.Get(vcsdb.TreeChanges, changeKey(id))
	if err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "read change", err)
	}
	if raw == nil {
		return nil, vcserr.ChangeNotFound.WithChange(id)
	}
	var c Change
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, vcserr.Wrap(vcserr.KindStorageUnavailable, "decode change", err)
	}
	return &c, nil
}

func (m *Machine) saveChange(c *Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "encode change", err)
	}
	if err := m.db.Put(vcsdb.TreeChanges, changeKey(c.ID), raw); err != nil {
		return vcserr.Wrap(vcserr.KindStorageUnavailable, "write change", err)
	}
	return nil
}

func (m *Machine) changeState(id string) (State, error) {
	c, err := m.loadChange(id)
	if err != nil {
		return "", err
	}
	return c.State, nil
}

// approvedDigest is the approval-aware view of a RefKey: the digest of
// the latest version whose owning change has reached State==Approved,
// walking the raw version chain backward past any Draft/Stashed/
// Abandoned versions. found is false when no approved, non-deleted
// version exists (the refkey is absent in the approved history).
func (m *Machine) approvedDigest(k refs.RefKey) (string, bool, error) {
	history, err := m.refs.History(k)
	if err != nil {
		return "", false, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		state, err := m.changeState(e.ChangeID)
		if err != nil {
			if vcserr.Of(err, vcserr.KindChangeNotFound) {
				continue
			}
			return "", false, err
		}
		if state != StateApproved {
			continue
		}
		if e.Deleted {
			return "", false, nil
		}
		return e.Digest, true, nil
	}
	return "", false, nil
}

// visibleDigest is the session-aware view a working draft sees for
// itself: its own not-yet-approved edits are visible (spec.md's stash/
// switch scenario requires that while C2 is stashed, "b" still reads
// as C2's pre-image, i.e. C2's own unapproved edit is NOT visible once
// it's no longer the working change), falling back to approvedDigest
// for everything else.
func (m *Machine) visibleDigest(k refs.RefKey, workingChangeID string) (string, bool, error) {
	e, ok, err := m.refs.Current(k)
	if err != nil {
		return "", false, err
	}
	if ok && e.ChangeID == workingChangeID {
		if e.Deleted {
			return "", false, nil
		}
		return e.Digest, true, nil
	}
	return m.approvedDigest(k)
}

// currentMetaDoc resolves name's companion MetaObject exactly the way
// object content itself resolves: the working draft's own unapproved
// edit is visible to itself, otherwise the latest approved version. An
// absent MetaObject decodes to the empty Doc (spec.md §4.4: meta is
// created lazily on first ignore-list mutation). This is the single
// call-site every filtering decision in this file goes through, so
// ingest, read-back, and diff computation all see the same rules
// applied to the same current state (spec.md §4.4).
func (m *Machine) currentMetaDoc(name string) (metastore.Doc, error) {
	k := metaKeyFor(name)
	var digest string
	var found bool
	var err error
	if working, ok, werr := m.ws.working(); werr != nil {
		return metastore.Doc{}, werr
	} else if ok {
		digest, found, err = m.visibleDigest(k, working)
	} else {
		digest, found, err = m.approvedDigest(k)
	}
	if err != nil {
		return metastore.Doc{}, err
	}
	if !found {
		return metastore.Doc{}, nil
	}
	raw, err := m.objects.Get(digest)
	if err != nil {
		return metastore.Doc{}, err
	}
	if raw == nil {
		return metastore.Doc{}, vcserr.New(vcserr.KindIntegrityMismatch, "digest referenced but object missing").WithRef(k.String())
	}
	return metastore.Decode(raw)
}

// Create starts a new Draft, failing if a Draft is already current
// (spec.md §3: "exactly one Draft is current per repository" — the
// existing one must be Stash()ed first).
func (m *Machine) Create(author AuthorInfo) (*Change, error) {
	if working, ok, err := m.ws.working(); err != nil {
		return nil, err
	} else if ok {
		return nil, vcserr.IllegalTransition.WithChange(working)
	}
	var parent *uint64
	if head, ok, err := m.index.Head(); err != nil {
		return nil, err
	} else if ok {
		p := head
		parent = &p
	}
	id := uuid.New()
	ch := newChange(id, author, parent)
	if err := m.saveChange(ch); err != nil {
		return nil, err
	}
	if err := m.ws.setWorking(id); err != nil {
		return nil, err
	}
	machineLog.Info("change created", "change", id, "author", author.UserID)
	return ch, nil
}

func (m *Machine) requireWorking() (string, *Change, error) {
	working, ok, err := m.ws.working()
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, vcserr.New(vcserr.KindIllegalTransition, "no active draft")
	}
	ch, err := m.loadChange(working)
	if err != nil {
		return "", nil, err
	}
	if ch.State != StateDraft {
		return "", nil, vcserr.IllegalTransition.WithChange(working)
	}
	return working, ch, nil
}

func (m *Machine) filterForIngest(k refs.RefKey, d dump.Dump) (dump.Dump, error) {
	if k.Type != dump.TypeObject {
		return d, nil
	}
	doc, err := m.currentMetaDoc(k.Name)
	if err != nil {
		return dump.Dump{}, err
	}
	return metastore.Filter(d, doc), nil
}

// recordVersion is the common tail of every content-producing
// mutation: classify k's edit within ch (Added vs Modified, reusing an
// already-open entry's PreDigest if this draft already touched k this
// session), append the new version to the Reference Resolver, and
// persist ch. Update and the meta ignore-list edits below both funnel
// through here so an object edit and a meta edit go through the
// identical Draft/version pipeline (spec.md §4.4, §4.5).
func (m *Machine) recordVersion(working string, ch *Change, k refs.RefKey, postDigest string) error {
	key := k.String()
	var entry DeltaEntry
	if prior, ok := ch.Added[key]; ok {
		entry = prior
		entry.PostDigest = postDigest
	} else if prior, ok := ch.Modified[key]; ok {
		entry = prior
		entry.PostDigest = postDigest
	} else {
		preDigest, existed, err := m.approvedDigest(k)
		if err != nil {
			return err
		}
		if !existed {
			preDigest = ""
		}
		entry = DeltaEntry{RefKey: k, PreDigest: preDigest, PostDigest: postDigest}
	}
	ch.forget(k)
	if entry.PreDigest == "" {
		ch.Added[key] = entry
	} else {
		ch.Modified[key] = entry
	}

	if _, err := m.refs.Append(k, postDigest, working); err != nil {
		return err
	}
	ch.UpdatedAt = time.Now().UTC()
	return m.saveChange(ch)
}

// Update parses text, filters it through the companion meta document,
// stores the resulting dump content-addressed, and records a version
// on k tied to the working draft (spec.md §4.2-4.5).
func (m *Machine) Update(k refs.RefKey, text string) (string, error) {
	working, ch, err := m.requireWorking()
	if err != nil {
		return "", err
	}
	parsed, err := m.parser.Parse(text)
	if err != nil {
		return "", err
	}
	parsed.Name = k.Name
	filtered, err := m.filterForIngest(k, parsed)
	if err != nil {
		return "", err
	}
	postDigest, err := objectstore.StoreDump(m.objects, filtered)
	if err != nil {
		return "", err
	}
	if err := m.recordVersion(working, ch, k, postDigest); err != nil {
		return "", err
	}
	return postDigest, nil
}

// metaMutate is the shared body of every meta.* boundary operation:
// read name's currently visible Doc, apply edit, content-address the
// new YAML encoding, and record it through the same Draft/version
// pipeline Update uses — so ignore-list changes attach to the working
// Draft and only become approved-visible on Approve, exactly like an
// object edit (spec.md §4.4: "writes a new MetaObject version through
// the normal change pipeline").
func (m *Machine) metaMutate(name string, edit func(metastore.Doc) metastore.Doc) error {
	working, ch, err := m.requireWorking()
	if err != nil {
		return err
	}
	doc, err := m.currentMetaDoc(name)
	if err != nil {
		return err
	}
	raw, err := metastore.Encode(edit(doc))
	if err != nil {
		return err
	}
	postDigest := dump.Digest(raw)
	if err := m.objects.Store(postDigest, raw); err != nil {
		return err
	}
	return m.recordVersion(working, ch, metaKeyFor(name), postDigest)
}

// AddIgnoredProperty implements meta.add-ignored-prop.
func (m *Machine) AddIgnoredProperty(name, property string) error {
	return m.metaMutate(name, func(d metastore.Doc) metastore.Doc {
		return metastore.AddIgnoredProperty(d, property)
	})
}

// AddIgnoredVerb implements meta.add-ignored-verb.
func (m *Machine) AddIgnoredVerb(name, verb string) error {
	return m.metaMutate(name, func(d metastore.Doc) metastore.Doc {
		return metastore.AddIgnoredVerb(d, verb)
	})
}

// RemoveIgnoredProperty implements meta.remove-ignored-prop.
func (m *Machine) RemoveIgnoredProperty(name, property string) error {
	return m.metaMutate(name, func(d metastore.Doc) metastore.Doc {
		return metastore.RemoveIgnoredProperty(d, property)
	})
}

// RemoveIgnoredVerb implements meta.remove-ignored-verb.
func (m *Machine) RemoveIgnoredVerb(name, verb string) error {
	return m.metaMutate(name, func(d metastore.Doc) metastore.Doc {
		return metastore.RemoveIgnoredVerb(d, verb)
	})
}

// ClearMeta implements meta.clear.
func (m *Machine) ClearMeta(name string) error {
	return m.metaMutate(name, metastore.Clear)
}

// Delete records a tombstone version on k and classifies it as a
// deletion in the working draft. An object's companion meta ref is
// tombstoned in the same call, not deferred to Approve time, keeping
// the lifecycle coupling of spec.md §4.4 issued from this single
// call-site.
func (m *Machine) Delete(k refs.RefKey) error {
	working, ch, err := m.requireWorking()
	if err != nil {
		return err
	}
	preDigest, existed, err := m.approvedDigest(k)
	if err != nil {
		return err
	}
	if !existed {
		if _, draftExisted, derr := m.refs.Current(k); derr != nil {
			return derr
		} else if !draftExisted {
			return vcserr.RefNotFound.WithRef(k.String())
		}
	}
	if _, err := m.refs.AppendTombstone(k, preDigest, working); err != nil {
		return err
	}
	key := k.String()
	ch.forget(k)
	ch.Deleted[key] = DeleteEntry{RefKey: k, PreDigest: preDigest}

	if k.Type == dump.TypeObject {
		metaKey := metaKeyFor(k.Name)
		metaPre, metaExisted, err := m.approvedDigest(metaKey)
		if err != nil {
			return err
		}
		if !metaExisted {
			if _, metaExisted, err = m.visibleDigest(metaKey, working); err != nil {
				return err
			}
		}
		if metaExisted {
			if _, err := m.refs.AppendTombstone(metaKey, metaPre, working); err != nil {
				return err
			}
			ch.forget(metaKey)
			ch.Deleted[metaKey.String()] = DeleteEntry{RefKey: metaKey, PreDigest: metaPre}
		}
	}

	ch.UpdatedAt = time.Now().UTC()
	return m.saveChange(ch)
}

// Rename moves oldKey's entire version chain to newKey, carrying its
// companion meta document's version chain along under the matching new
// name (spec.md §4.4 lifecycle coupling).
func (m *Machine) Rename(oldKey, newKey refs.RefKey) error {
	_, ch, err := m.requireWorking()
	if err != nil {
		return err
	}
	preDigest, existed, err := m.approvedDigest(oldKey)
	if err != nil {
		return err
	}
	if !existed {
		if _, draftExisted, derr := m.refs.Current(oldKey); derr != nil {
			return derr
		} else if !draftExisted {
			return vcserr.RefNotFound.WithRef(oldKey.String())
		}
	}
	if err := m.refs.Rename(oldKey, newKey); err != nil {
		return err
	}
	ch.forget(oldKey)
	ch.forget(newKey)
	ch.Renamed[oldKey.String()] = RenameEntry{Old: oldKey, New: newKey, PreDigest: preDigest}

	if oldKey.Type == dump.TypeObject {
		metaOld := metaKeyFor(oldKey.Name)
		metaNew := metaKeyFor(newKey.Name)
		if _, metaExisted, err := m.refs.Current(metaOld); err != nil {
			return err
		} else if metaExisted {
			metaPre, _, err := m.approvedDigest(metaOld)
			if err != nil {
				return err
			}
			if err := m.refs.Rename(metaOld, metaNew); err != nil {
				return err
			}
			ch.forget(metaOld)
			ch.forget(metaNew)
			ch.Renamed[metaOld.String()] = RenameEntry{Old: metaOld, New: metaNew, PreDigest: metaPre}
		}
	}

	ch.UpdatedAt = time.Now().UTC()
	return m.saveChange(ch)
}

// Stash moves the working Draft to Stashed and clears the working
// pointer, freeing another Draft to become current (spec.md §4.7).
func (m *Machine) Stash() error {
	working, ch, err := m.requireWorking()
	if err != nil {
		return err
	}
	ch.State = StateStashed
	ch.UpdatedAt = time.Now().UTC()
	if err := m.saveChange(ch); err != nil {
		return err
	}
	if err := m.ws.stash(working); err != nil {
		return err
	}
	return m.ws.clearWorking()
}

// Switch moves a Stashed change back to Draft and makes it current.
// Fails if a Draft is already active, or if id isn't in the Stashed
// set — checked against workspace's bounded recent-lookup cache first,
// so a long-lived Machine that is asked to switch to the same ids
// repeatedly doesn't pay a workspace bucket read every time. The cache
// lives in the Machine, so each cmd/vcsd invocation starts with it
// empty.
func (m *Machine) Switch(id string) error {
	if working, ok, err := m.ws.working(); err != nil {
		return err
	} else if ok {
		return vcserr.IllegalTransition.WithChange(working)
	}
	if stashed, err := m.ws.IsStashed(id); err != nil {
		return err
	} else if !stashed {
		return vcserr.IllegalTransition.WithChange(id)
	}
	ch, err := m.loadChange(id)
	if err != nil {
		return err
	}
	if ch.State != StateStashed {
		return vcserr.IllegalTransition.WithChange(id)
	}
	ch.State = StateDraft
	ch.UpdatedAt = time.Now().UTC()
	if err := m.saveChange(ch); err != nil {
		return err
	}
	if err := m.ws.unstash(id); err != nil {
		return err
	}
	return m.ws.setWorking(id)
}

// Approve checks every effect's recorded pre-image digest against the
// current approved digest (conflict detection, spec.md §4.5) and, if
// none conflict, appends id to the approved Index and marks it
// Approved. Approval is legal from Draft or Stashed directly — two
// authors can draft concurrently and either may approve without first
// switching back to Draft.
func (m *Machine) Approve(id string) (*Change, error) {
	ch, err := m.loadChange(id)
	if err != nil {
		return nil, err
	}
	if ch.State != StateDraft && ch.State != StateStashed {
		return nil, vcserr.IllegalTransition.WithChange(id)
	}
	for _, eff := range ch.effects() {
		cur, existed, err := m.approvedDigest(eff.RefKey)
		if err != nil {
			return nil, err
		}
		curDigest := ""
		if existed {
			curDigest = cur
		}
		if curDigest != eff.PreDigest {
			return nil, vcserr.Conflict.WithRef(eff.RefKey.String()).WithChange(id)
		}
	}

	if err := m.db.Batch(func(tx vcsdb.Tx) error {
		_, err := m.index.Append(tx, id)
		return err
	}); err != nil {
		return nil, err
	}

	ch.State = StateApproved
	ch.UpdatedAt = time.Now().UTC()
	if err := m.saveChange(ch); err != nil {
		return nil, err
	}

	if working, ok, err := m.ws.working(); err != nil {
		return nil, err
	} else if ok && working == id {
		if err := m.ws.clearWorking(); err != nil {
			return nil, err
		}
	}
	if err := m.ws.unstash(id); err != nil {
		return nil, err
	}

	machineLog.Info("change approved", "change", id)
	return ch, nil
}

// Submit hands an Approved change's touched blobs to the configured
// mirror. Failure is never retried inside the core (spec.md §7);
// Submitted stays false so a caller can retry.
func (m *Machine) Submit(ctx context.Context, id string) (mirror.Receipt, error) {
	ch, err := m.loadChange(id)
	if err != nil {
		return mirror.Receipt{}, err
	}
	if ch.State != StateApproved {
		return mirror.Receipt{}, vcserr.IllegalTransition.WithChange(id)
	}
	if ch.Submitted {
		return mirror.Receipt{}, vcserr.IllegalTransition.WithChange(id)
	}

	seen := map[string]bool{}
	var blobs []mirror.Blob
	for _, eff := range ch.effects() {
		if eff.PostDigest == "" || seen[eff.PostDigest] {
			continue
		}
		seen[eff.PostDigest] = true
		raw, err := m.objects.Get(eff.PostDigest)
		if err != nil {
			return mirror.Receipt{}, err
		}
		if raw == nil {
			continue
		}
		blobs = append(blobs, mirror.Blob{Digest: eff.PostDigest, Bytes: raw})
	}

	receipt, err := m.mirror.Submit(ctx, id, blobs)
	if err != nil {
		return mirror.Receipt{}, vcserr.Wrap(vcserr.KindUpstreamFailed, "submit to mirror", err).WithChange(id)
	}
	ch.Submitted = true
	ch.UpdatedAt = time.Now().UTC()
	if err := m.saveChange(ch); err != nil {
		return mirror.Receipt{}, err
	}
	return receipt, nil
}

// Abandon marks a Draft or Stashed change Abandoned (terminal) without
// touching the raw version chain: versions it appended remain visible
// in Resolver.History, tagged with its change-id, for audit.
func (m *Machine) Abandon(id string) error {
	ch, err := m.loadChange(id)
	if err != nil {
		return err
	}
	if ch.State != StateDraft && ch.State != StateStashed {
		return vcserr.IllegalTransition.WithChange(id)
	}
	ch.State = StateAbandoned
	ch.UpdatedAt = time.Now().UTC()
	if err := m.saveChange(ch); err != nil {
		return err
	}
	if working, ok, err := m.ws.working(); err != nil {
		return err
	} else if ok && working == id {
		if err := m.ws.clearWorking(); err != nil {
			return err
		}
	}
	return m.ws.unstash(id)
}

// Reset abandons only the current working Draft, leaving any Stashed
// changes untouched (Open Question decision: the analogue of
// `git reset --hard` against the current tip, not `git stash clear`).
// A no-op, not an error, when no Draft is current.
func (m *Machine) Reset() error {
	working, ok, err := m.ws.working()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return m.Abandon(working)
}

// GetChange returns a change's full record regardless of state.
func (m *Machine) GetChange(id string) (*Change, error) {
	return m.loadChange(id)
}

// Status reports the current working change-id (if any) and the full
// Stashed set, per spec.md §4.7 / the hello_op-derived status surface.
func (m *Machine) Status() (working string, hasWorking bool, stashed []string, err error) {
	working, hasWorking, err = m.ws.working()
	if err != nil {
		return "", false, nil, err
	}
	stashed, err = m.ws.List()
	if err != nil {
		return "", false, nil, err
	}
	return working, hasWorking, stashed, nil
}

// ListStashed returns the full Change record for every Stashed id.
func (m *Machine) ListStashed() ([]*Change, error) {
	ids, err := m.ws.List()
	if err != nil {
		return nil, err
	}
	out := make([]*Change, 0, len(ids))
	for _, id := range ids {
		ch, err := m.loadChange(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// Get materializes k, applying its companion meta document's current
// filter before returning (spec.md §4.4: "on read-back... apply the
// same filtering" as ingest, not just at ingest time). version selects
// a specific historical version via the Reference Resolver instead of
// the current one (spec.md §6's "name [, version]"); nil means current.
// The working draft's own unapproved edits are visible to itself when
// no version is requested, falling back to the approved view otherwise
// (spec.md's stash/switch scenario). found is false for a refkey that
// has never existed, is currently deleted, or names a version that was
// never recorded.
func (m *Machine) Get(k refs.RefKey, version *uint64) (dump.Dump, bool, error) {
	var digest string
	var found bool
	var err error
	if version != nil {
		digest, found, err = m.refs.Version(k, *version)
	} else if working, ok, werr := m.ws.working(); werr != nil {
		return dump.Dump{}, false, werr
	} else if ok {
		digest, found, err = m.visibleDigest(k, working)
	} else {
		digest, found, err = m.approvedDigest(k)
	}
	if err != nil {
		return dump.Dump{}, false, err
	}
	if !found {
		return dump.Dump{}, false, nil
	}
	raw, err := m.objects.Get(digest)
	if err != nil {
		return dump.Dump{}, false, err
	}
	if raw == nil {
		return dump.Dump{}, false, vcserr.New(vcserr.KindIntegrityMismatch, "digest referenced but object missing").WithRef(k.String())
	}
	parsed, err := m.parser.Parse(string(raw))
	if err != nil {
		return dump.Dump{}, false, err
	}
	if k.Type == dump.TypeObject {
		doc, err := m.currentMetaDoc(k.Name)
		if err != nil {
			return dump.Dump{}, false, err
		}
		parsed = metastore.Filter(parsed, doc)
	}
	return parsed, true, nil
}

// List enumerates every RefKey of the given type currently known to
// the Reference Resolver (raw, unfiltered by approval state — callers
// that need only approved-visible names should pair this with Get).
func (m *Machine) List(t dump.ObjectType) ([]refs.RefKey, error) {
	return m.refs.List(t)
}

// CalcDelta returns the (refkey, pre, post) effects a change would
// apply, for the index.calc-delta boundary operation of spec.md §6.
// Each object effect's digests are re-expressed against the refkey's
// *current* meta document rather than returned as stored, so a
// property or verb ignored after the change was recorded still
// disappears from the diff on both sides (spec.md §4.4: "diff
// computation... excluded on both sides").
func (m *Machine) CalcDelta(id string) ([]Effect, error) {
	ch, err := m.loadChange(id)
	if err != nil {
		return nil, err
	}
	raw := ch.effects()
	out := make([]Effect, 0, len(raw))
	for _, eff := range raw {
		filtered, err := m.filterEffect(eff)
		if err != nil {
			return nil, err
		}
		out = append(out, filtered)
	}
	return out, nil
}

// filterEffect re-expresses eff's pre/post digests against its
// refkey's current meta document: each non-empty digest is decoded,
// re-filtered, and re-digested. The recomputed digest is for diff
// display only — it is never written back to the object store or the
// Resolver, so it carries no version of its own. Meta refkeys and
// empty digests (a deletion's post side) pass through unchanged.
func (m *Machine) filterEffect(eff Effect) (Effect, error) {
	if eff.RefKey.Type != dump.TypeObject {
		return eff, nil
	}
	doc, err := m.currentMetaDoc(eff.RefKey.Name)
	if err != nil {
		return Effect{}, err
	}
	pre, err := m.refilterDigest(eff.PreDigest, doc)
	if err != nil {
		return Effect{}, err
	}
	post, err := m.refilterDigest(eff.PostDigest, doc)
	if err != nil {
		return Effect{}, err
	}
	eff.PreDigest = pre
	eff.PostDigest = post
	return eff, nil
}

func (m *Machine) refilterDigest(digest string, doc metastore.Doc) (string, error) {
	if digest == "" {
		return "", nil
	}
	raw, err := m.objects.Get(digest)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", vcserr.New(vcserr.KindIntegrityMismatch, "digest referenced but object missing").WithRef(digest)
	}
	parsed, err := m.parser.Parse(string(raw))
	if err != nil {
		return "", err
	}
	filtered := metastore.Filter(parsed, doc)
	return dump.Digest(dump.Canonicalize(filtered)), nil
}

// Index exposes the approved append-only index for the index.list/
// index.calc-delta boundary operations (spec.md §6); dispatch needs it
// to turn a position into a change-id before calling CalcDelta.
func (m *Machine) Index() *index.Index { return m.index }
