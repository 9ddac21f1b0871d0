package utxodb

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/scroogecoin/ledger/indexer"
	"github.com/lunfardo314/scroogecoin/ledger/state"
	"github.com/lunfardo314/scroogecoin/ledger/txbuilder"
	"github.com/lunfardo314/unitrie/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// UTXODB is an in-memory ledger with genesis supply and a faucet. Each batch is applied
// to the registry in one critical section, readers see the state between batches
type UTXODB struct {
	mutex             sync.RWMutex
	registry          *state.Registry
	indexer           *indexer.Indexer
	handler           *state.Handler
	log               *zap.SugaredLogger
	supply            uint64
	genesisPrivateKey ed25519.PrivateKey
	genesisPublicKey  ed25519.PublicKey
}

const (
	// for determinism
	originPrivateKey        = "8ec47313c15c3a4443c41619735109b56bc818f4a6b71d6a1f186ec96d15f28f14117899305d99fb4775de9223ce9886cfaa3195da1e40c5db47c61266f04dd2"
	deterministicSeed       = "1234567890987654321"
	supplyForTesting        = uint64(1_000_000_000_000)
	TokensFromFaucetDefault = uint64(1_000_000)
)

// GenesisOutputID is the all-0 output ID
var GenesisOutputID ledger.OutputID

// NewUTXODB creates ledger with the genesis output of the whole supply locked to the genesis key.
// With trace, every accepted and rejected transaction is logged
func NewUTXODB(trace ...bool) *UTXODB {
	originPrivateKeyBin, err := hex.DecodeString(originPrivateKey)
	easyfl.AssertNoError(err)
	genesisPrivateKey := ed25519.NewKeyFromSeed(originPrivateKeyBin[:ed25519.SeedSize])
	genesisPublicKey := genesisPrivateKey.Public().(ed25519.PublicKey)

	log := zap.NewNop().Sugar()
	if len(trace) > 0 && trace[0] {
		l, err := zap.NewDevelopment()
		easyfl.AssertNoError(err)
		log = l.Sugar().Named("utxodb")
	}
	reg, err := state.NewRegistryFromOutputs(&ledger.OutputWithID{
		ID:     GenesisOutputID,
		Output: ledger.NewOutput(supplyForTesting, genesisPublicKey),
	})
	easyfl.AssertNoError(err)

	ret := &UTXODB{
		registry:          reg,
		indexer:           indexer.New(),
		handler:           state.NewHandler(state.WithLogger(log)),
		log:               log,
		supply:            supplyForTesting,
		genesisPrivateKey: genesisPrivateKey,
		genesisPublicKey:  genesisPublicKey,
	}
	ret.indexer.Update([]*indexer.Command{{Owner: genesisPublicKey, OutputID: GenesisOutputID}})
	return ret
}

func (u *UTXODB) Supply() uint64 {
	return u.supply
}

func (u *UTXODB) GenesisKeys() (ed25519.PrivateKey, ed25519.PublicKey) {
	return u.genesisPrivateKey, u.genesisPublicKey
}

// Snapshot returns independent copy of the current state
func (u *UTXODB) Snapshot() *state.Registry {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	return u.registry.Clone()
}

func (u *UTXODB) GetUTXO(oid *ledger.OutputID) (*ledger.Output, bool) {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	ret, found := u.registry.GetUTXO(oid)
	if !found {
		return nil, false
	}
	return ret.Clone(), true
}

// AddTransactions applies the batch and returns accepted transactions.
// Invalid and conflicting transactions are skipped
func (u *UTXODB) AddTransactions(txs ...*ledger.Transaction) []*ledger.Transaction {
	return u.AddTransactionsWithReport(txs...).Accepted
}

func (u *UTXODB) AddTransactionsWithReport(txs ...*ledger.Transaction) *state.Report {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	rep := u.handler.HandleTxsWithReport(u.registry, txs)
	u.indexer.Update(indexer.CommandsFromTransactions(u.registry, rep.Accepted...))
	u.registry = rep.Registry
	return rep
}

// AddTransaction applies a single transaction and returns the reason if it was rejected
func (u *UTXODB) AddTransaction(tx *ledger.Transaction) error {
	rep := u.AddTransactionsWithReport(tx)
	if len(rep.Rejected) > 0 {
		return rep.Rejected[0].Err
	}
	return nil
}

// GenerateKeys deterministically derives key pair number n
func (u *UTXODB) GenerateKeys(n uint16) (ed25519.PrivateKey, ed25519.PublicKey) {
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], n)
	seed := blake2b.Sum256(common.Concat([]byte(deterministicSeed), u16[:]))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv, priv.Public().(ed25519.PublicKey)
}

func (u *UTXODB) MakeED25519TransferInputs(privKey ed25519.PrivateKey, desc ...bool) *txbuilder.ED25519TransferInputs {
	ret := txbuilder.NewED25519TransferInputs(privKey)
	outs := u.GetUTXOsForAccount(ret.SenderPublicKey)
	txbuilder.SortOutputsByAmount(outs, desc...)
	return ret.WithOutputs(outs)
}

func (u *UTXODB) GetUTXOsForAccount(owner ed25519.PublicKey) []*ledger.OutputWithID {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	return u.indexer.GetUTXOsForAccount(owner, u.registry)
}

func (u *UTXODB) TokensFromFaucet(owner ed25519.PublicKey, howMany ...uint64) error {
	amount := TokensFromFaucetDefault
	if len(howMany) > 0 && howMany[0] > 0 {
		amount = howMany[0]
	}
	par := u.MakeED25519TransferInputs(u.genesisPrivateKey).
		WithAmount(amount).
		WithTargetOwner(owner)
	tx, err := txbuilder.MakeTransferTransaction(par)
	if err != nil {
		return fmt.Errorf("UTXODB faucet: %v", err)
	}
	return u.AddTransaction(tx)
}

func (u *UTXODB) TransferTokens(privKey ed25519.PrivateKey, target ed25519.PublicKey, amount uint64) error {
	_, err := u.DoTransferTx(u.MakeED25519TransferInputs(privKey).
		WithAmount(amount).
		WithTargetOwner(target))
	return err
}

func (u *UTXODB) DoTransferTx(par *txbuilder.ED25519TransferInputs) (*ledger.Transaction, error) {
	tx, err := txbuilder.MakeTransferTransaction(par)
	if err != nil {
		return nil, err
	}
	return tx, u.AddTransaction(tx)
}

func (u *UTXODB) account(owner ed25519.PublicKey) (uint64, int) {
	outs := u.GetUTXOsForAccount(owner)
	balance := uint64(0)
	for _, o := range outs {
		balance += o.Output.Amount
	}
	return balance, len(outs)
}

func (u *UTXODB) Balance(owner ed25519.PublicKey) uint64 {
	ret, _ := u.account(owner)
	return ret
}

func (u *UTXODB) NumUTXOs(owner ed25519.PublicKey) int {
	_, ret := u.account(owner)
	return ret
}
