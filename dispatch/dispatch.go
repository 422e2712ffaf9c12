// Package dispatch is the thin request-dispatcher adapter of spec.md
// §4/§6: it translates the boundary operation table (object.*,
// meta.*, change.*, index.*) into calls against a repo.Repo's
// change.Machine, validating arguments first and invoking the
// authorize hook before every state-mutating operation. The HTTP (or
// any other) transport that turns wire requests into these method
// calls is out of scope (spec.md §1).
package dispatch

import (
	"context"

	"github.com/biscuitwizard/vcscore/change"
	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/mirror"
	"github.com/biscuitwizard/vcscore/refs"
	"github.com/biscuitwizard/vcscore/repo"
	"github.com/biscuitwizard/vcscore/validate"
	"github.com/biscuitwizard/vcscore/vcserr"
)

// Authorize is the capability the core consumes as an opaque
// predicate (spec.md §6): authorize(user-id, operation) -> allowed.
type Authorize func(userID, operation string) bool

// AllowAll is the trivial Authorize used when no permission layer is
// configured (e.g. a single-operator CLI), matching spec.md's note
// that user/permission administration is out of scope beyond the hook
// itself.
func AllowAll(string, string) bool { return true }

// Dispatcher is the adapter every boundary operation in spec.md §6
// resolves to one method on.
type Dispatcher struct {
	repo      *repo.Repo
	authorize Authorize
}

func New(r *repo.Repo, authorize Authorize) *Dispatcher {
	if authorize == nil {
		authorize = AllowAll
	}
	return &Dispatcher{repo: r, authorize: authorize}
}

func (d *Dispatcher) checkAuth(userID, operation string) error {
	if !d.authorize(userID, operation) {
		return vcserr.PermissionDenied.WithChange(operation)
	}
	return nil
}

// ObjectUpdate implements object.update.
func (d *Dispatcher) ObjectUpdate(userID, name, text string) (string, error) {
	if err := validate.Name("name", name); err != nil {
		return "", err
	}
	if err := d.checkAuth(userID, "object.update"); err != nil {
		return "", err
	}
	var digest string
	err := d.repo.WithLock(func(m *change.Machine) error {
		var err error
		digest, err = m.Update(refs.RefKey{Type: dump.TypeObject, Name: name}, text)
		return err
	})
	return digest, err
}

// ObjectGet implements object.get. version selects a specific
// historical version (spec.md §6's "name [, version]"); nil fetches
// the current one. Reads never require authorization or the write
// lock (spec.md §5: reads take a lock-free snapshot).
func (d *Dispatcher) ObjectGet(name string, version *uint64) (dump.Dump, bool, error) {
	if err := validate.Name("name", name); err != nil {
		return dump.Dump{}, false, err
	}
	return d.repo.Machine.Get(refs.RefKey{Type: dump.TypeObject, Name: name}, version)
}

// ObjectDelete implements object.delete.
func (d *Dispatcher) ObjectDelete(userID, name string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "object.delete"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.Delete(refs.RefKey{Type: dump.TypeObject, Name: name})
	})
}

// ObjectRename implements object.rename.
func (d *Dispatcher) ObjectRename(userID, oldName, newName string) error {
	if err := validate.Name("old-name", oldName); err != nil {
		return err
	}
	if err := validate.Name("new-name", newName); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "object.rename"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.Rename(
			refs.RefKey{Type: dump.TypeObject, Name: oldName},
			refs.RefKey{Type: dump.TypeObject, Name: newName},
		)
	})
}

// ObjectList implements object.list.
func (d *Dispatcher) ObjectList(t dump.ObjectType) ([]refs.RefKey, error) {
	if err := validate.ObjectType(t); err != nil {
		return nil, err
	}
	return d.repo.Machine.List(t)
}

// MetaAddIgnoredProperty implements meta.add-ignored-prop.
func (d *Dispatcher) MetaAddIgnoredProperty(userID, name, property string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := validate.Name("property", property); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "meta.add-ignored-prop"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.AddIgnoredProperty(name, property)
	})
}

// MetaAddIgnoredVerb implements meta.add-ignored-verb.
func (d *Dispatcher) MetaAddIgnoredVerb(userID, name, verb string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := validate.Name("verb", verb); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "meta.add-ignored-verb"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.AddIgnoredVerb(name, verb)
	})
}

// MetaRemoveIgnoredProperty implements meta.remove-ignored-prop.
func (d *Dispatcher) MetaRemoveIgnoredProperty(userID, name, property string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "meta.remove-ignored-prop"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.RemoveIgnoredProperty(name, property)
	})
}

// MetaRemoveIgnoredVerb implements meta.remove-ignored-verb.
func (d *Dispatcher) MetaRemoveIgnoredVerb(userID, name, verb string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "meta.remove-ignored-verb"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.RemoveIgnoredVerb(name, verb)
	})
}

// MetaClear implements meta.clear.
func (d *Dispatcher) MetaClear(userID, name string) error {
	if err := validate.Name("name", name); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "meta.clear"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.ClearMeta(name)
	})
}

// ChangeCreate implements change.create.
func (d *Dispatcher) ChangeCreate(userID string, external bool) (*change.Change, error) {
	if err := d.checkAuth(userID, "change.create"); err != nil {
		return nil, err
	}
	var ch *change.Change
	err := d.repo.WithLock(func(m *change.Machine) error {
		var err error
		ch, err = m.Create(change.AuthorInfo{UserID: userID, External: external})
		return err
	})
	return ch, err
}

// ChangeAbandon implements change.abandon: abandons the current
// working change.
func (d *Dispatcher) ChangeAbandon(userID string) error {
	if err := d.checkAuth(userID, "change.abandon"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		working, ok, _, err := m.Status()
		if err != nil {
			return err
		}
		if !ok {
			return vcserr.New(vcserr.KindIllegalTransition, "no active draft to abandon")
		}
		return m.Abandon(working)
	})
}

// ChangeStash implements change.stash.
func (d *Dispatcher) ChangeStash(userID string) error {
	if err := d.checkAuth(userID, "change.stash"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.Stash()
	})
}

// ChangeSwitch implements change.switch.
func (d *Dispatcher) ChangeSwitch(userID, changeID string) error {
	if err := validate.ChangeID(changeID); err != nil {
		return err
	}
	if err := d.checkAuth(userID, "change.switch"); err != nil {
		return err
	}
	return d.repo.WithLock(func(m *change.Machine) error {
		return m.Switch(changeID)
	})
}

// ChangeApprove implements change.approve.
func (d *Dispatcher) ChangeApprove(userID, changeID string) (*change.Change, error) {
	if err := validate.ChangeID(changeID); err != nil {
		return nil, err
	}
	if err := d.checkAuth(userID, "change.approve"); err != nil {
		return nil, err
	}
	var ch *change.Change
	err := d.repo.WithLock(func(m *change.Machine) error {
		var err error
		ch, err = m.Approve(changeID)
		return err
	})
	return ch, err
}

// ChangeSubmit implements change.submit.
func (d *Dispatcher) ChangeSubmit(ctx context.Context, userID, changeID string) (mirror.Receipt, error) {
	if err := validate.ChangeID(changeID); err != nil {
		return mirror.Receipt{}, err
	}
	if err := d.checkAuth(userID, "change.submit"); err != nil {
		return mirror.Receipt{}, err
	}
	var receipt mirror.Receipt
	err := d.repo.WithLock(func(m *change.Machine) error {
		var err error
		receipt, err = m.Submit(ctx, changeID)
		return err
	})
	return receipt, err
}

// ChangeStatus implements change.status.
func (d *Dispatcher) ChangeStatus() (working string, hasWorking bool, stashed []string, err error) {
	return d.repo.Machine.Status()
}

// IndexList implements index.list.
func (d *Dispatcher) IndexList(from, to uint64) ([]string, error) {
	return d.repo.Machine.Index().Iter(from, to)
}

// IndexCalcDelta implements index.calc-delta.
func (d *Dispatcher) IndexCalcDelta(position uint64) ([]change.Effect, error) {
	id, ok, err := d.repo.Machine.Index().At(position)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vcserr.New(vcserr.KindVersionNotFound, "no approved change at this position")
	}
	return d.repo.Machine.CalcDelta(id)
}
