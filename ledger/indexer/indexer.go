package indexer

import (
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/lunfardo314/scroogecoin/ledger"
)

// Indexer maps owners to the outputs locked to them. It is a hint: entries are checked
// against the ledger state on read, so a stale entry is never returned
type Indexer struct {
	mutex    sync.RWMutex
	accounts map[string]map[ledger.OutputID]struct{}
}

type Command struct {
	Owner    ed25519.PublicKey
	OutputID ledger.OutputID
	Delete   bool
}

func New() *Indexer {
	return &Indexer{
		accounts: make(map[string]map[ledger.OutputID]struct{}),
	}
}

// GetUTXOsForAccount returns outputs of the owner present in the state, in ascending order of IDs
func (inr *Indexer) GetUTXOsForAccount(owner ed25519.PublicKey, st ledger.StateReadAccess) []*ledger.OutputWithID {
	inr.mutex.RLock()
	defer inr.mutex.RUnlock()

	ret := make([]*ledger.OutputWithID, 0)
	for oid := range inr.accounts[string(owner)] {
		oid := oid
		out, found := st.GetUTXO(&oid)
		if !found {
			continue
		}
		ret = append(ret, &ledger.OutputWithID{
			ID:     oid,
			Output: out.Clone(),
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].ID.Less(&ret[j].ID)
	})
	return ret
}

func (inr *Indexer) Update(cmds []*Command) {
	inr.mutex.Lock()
	defer inr.mutex.Unlock()

	for _, cmd := range cmds {
		key := string(cmd.Owner)
		if cmd.Delete {
			delete(inr.accounts[key], cmd.OutputID)
			if len(inr.accounts[key]) == 0 {
				delete(inr.accounts, key)
			}
			continue
		}
		acc, found := inr.accounts[key]
		if !found {
			acc = make(map[ledger.OutputID]struct{})
			inr.accounts[key] = acc
		}
		acc[cmd.OutputID] = struct{}{}
	}
}

// NumAccounts is the number of owners with at least one indexed output
func (inr *Indexer) NumAccounts() int {
	inr.mutex.RLock()
	defer inr.mutex.RUnlock()

	return len(inr.accounts)
}

// CommandsFromTransactions creates index updates for committed transactions.
// Owners of consumed outputs are looked up in st, the state before the transactions,
// or among outputs produced earlier in the same list
func CommandsFromTransactions(st ledger.StateReadAccess, txs ...*ledger.Transaction) []*Command {
	ret := make([]*Command, 0)
	produced := make(map[ledger.OutputID]ed25519.PublicKey)
	for _, tx := range txs {
		tx.ForEachInput(func(_ int, inp *ledger.Input) bool {
			if owner, found := produced[inp.OutputID]; found {
				ret = append(ret, &Command{Owner: owner, OutputID: inp.OutputID, Delete: true})
				return true
			}
			if out, found := st.GetUTXO(&inp.OutputID); found {
				ret = append(ret, &Command{Owner: out.Owner, OutputID: inp.OutputID, Delete: true})
			}
			return true
		})
		tx.ForEachOutput(func(i int, out *ledger.Output) bool {
			oid := tx.ProducedOutputID(i)
			produced[oid] = out.Owner
			ret = append(ret, &Command{Owner: out.Owner, OutputID: oid})
			return true
		})
	}
	return ret
}
