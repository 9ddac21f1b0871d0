package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/unitrie/common"
)

// Registry is the in-memory set of unspent outputs.
// It is not thread-safe. The owner of the registry serializes access to it;
// the only way to share the state is to hand out a Clone
type Registry struct {
	utxo map[ledger.OutputID]*ledger.Output
}

var (
	ErrNotFound      = errors.New("output not found")
	ErrAlreadyExists = errors.New("output already exists")
)

func NewRegistry() *Registry {
	return &Registry{
		utxo: make(map[ledger.OutputID]*ledger.Output),
	}
}

// NewRegistryFromOutputs is a genesis constructor
func NewRegistryFromOutputs(outs ...*ledger.OutputWithID) (*Registry, error) {
	ret := NewRegistry()
	for _, o := range outs {
		if err := ret.Insert(o.ID, o.Output); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *Registry) Contains(oid ledger.OutputID) bool {
	_, found := r.utxo[oid]
	return found
}

// GetUTXO implements ledger.StateReadAccess. The returned output must not be modified
func (r *Registry) GetUTXO(oid *ledger.OutputID) (*ledger.Output, bool) {
	ret, found := r.utxo[*oid]
	return ret, found
}

// Lookup returns copy of the output or ErrNotFound
func (r *Registry) Lookup(oid ledger.OutputID) (*ledger.Output, error) {
	ret, found := r.utxo[oid]
	if !found {
		return nil, fmt.Errorf("Lookup %s: %w", oid.String(), ErrNotFound)
	}
	return ret.Clone(), nil
}

// Insert stores copy of the output under oid
func (r *Registry) Insert(oid ledger.OutputID, out *ledger.Output) error {
	if out == nil {
		return fmt.Errorf("Insert %s: nil output", oid.String())
	}
	if _, already := r.utxo[oid]; already {
		return fmt.Errorf("Insert %s: %w", oid.String(), ErrAlreadyExists)
	}
	r.utxo[oid] = out.Clone()
	return nil
}

func (r *Registry) Remove(oid ledger.OutputID) error {
	if _, found := r.utxo[oid]; !found {
		return fmt.Errorf("Remove %s: %w", oid.String(), ErrNotFound)
	}
	delete(r.utxo, oid)
	return nil
}

// MustInsert panics if oid is already present. Only possible with the collision of transaction IDs
func (r *Registry) MustInsert(oid ledger.OutputID, out *ledger.Output) {
	err := r.Insert(oid, out)
	common.Assert(err == nil, "MustInsert: %v", err)
}

// MustRemove panics if oid is not present
func (r *Registry) MustRemove(oid ledger.OutputID) {
	err := r.Remove(oid)
	common.Assert(err == nil, "MustRemove: %v", err)
}

// Clone makes a deep copy which does not share any mutable data with the original
func (r *Registry) Clone() *Registry {
	ret := &Registry{
		utxo: make(map[ledger.OutputID]*ledger.Output, len(r.utxo)),
	}
	for oid, o := range r.utxo {
		ret.utxo[oid] = o.Clone()
	}
	return ret
}

func (r *Registry) Len() int {
	return len(r.utxo)
}

// ForEach iterates outputs in ascending order of output IDs. The output must not be modified
func (r *Registry) ForEach(fun func(oid ledger.OutputID, out *ledger.Output) bool) {
	oids := make([]ledger.OutputID, 0, len(r.utxo))
	for oid := range r.utxo {
		oids = append(oids, oid)
	}
	sort.Slice(oids, func(i, j int) bool {
		return oids[i].Less(&oids[j])
	})
	for _, oid := range oids {
		if !fun(oid, r.utxo[oid]) {
			return
		}
	}
}

// Equal compares content of two registries. Nil is not equal to any registry
func (r *Registry) Equal(other *Registry) bool {
	if other == nil {
		return false
	}
	if len(r.utxo) != len(other.utxo) {
		return false
	}
	for oid, o := range r.utxo {
		o1, found := other.utxo[oid]
		if !found || !o.Equal(o1) {
			return false
		}
	}
	return true
}

// Sum is the total amount of all unspent outputs. Panics on overflow
func (r *Registry) Sum() uint64 {
	var ret uint64
	for _, o := range r.utxo {
		common.Assert(ret+o.Amount >= ret, "Registry.Sum: arithmetic overflow")
		ret += o.Amount
	}
	return ret
}
