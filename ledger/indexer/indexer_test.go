package indexer_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/scroogecoin/ledger/indexer"
	"github.com/lunfardo314/scroogecoin/ledger/state"
	"github.com/lunfardo314/scroogecoin/ledger/txbuilder"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func key(seed string) ed25519.PrivateKey {
	s := blake2b.Sum256([]byte(seed))
	return ed25519.NewKeyFromSeed(s[:])
}

func pub(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func TestIndexer(t *testing.T) {
	privA, privB := key("a"), key("b")
	genesisOID := ledger.NewOutputID(ledger.TransactionID(blake2b.Sum256([]byte("genesis"))), 0)
	reg := state.NewRegistry()
	reg.MustInsert(genesisOID, ledger.NewOutput(100, pub(privA)))

	inr := indexer.New()
	inr.Update([]*indexer.Command{{Owner: pub(privA), OutputID: genesisOID}})
	outs := inr.GetUTXOsForAccount(pub(privA), reg)
	require.EqualValues(t, 1, len(outs))
	require.EqualValues(t, genesisOID, outs[0].ID)
	require.EqualValues(t, 100, outs[0].Output.Amount)

	// A pays 30 to B, B pays 10 back to A in the same batch
	tx1, err := txbuilder.MakeTransferTransaction(txbuilder.NewED25519TransferInputs(privA).
		WithOutputs(outs).
		WithTargetOwner(pub(privB)).
		WithAmount(30))
	require.NoError(t, err)
	b := txbuilder.NewTransactionBuilder()
	_, err = b.ConsumeOutput(tx1.Output(0), tx1.ProducedOutputID(0), privB)
	require.NoError(t, err)
	_, err = b.ProduceOutput(ledger.NewOutput(10, pub(privA)))
	require.NoError(t, err)
	_, err = b.ProduceOutput(ledger.NewOutput(20, pub(privB)))
	require.NoError(t, err)
	tx2, err := b.Build()
	require.NoError(t, err)

	accepted, reg1 := state.HandleTxs(reg, []*ledger.Transaction{tx1, tx2}, nil)
	require.EqualValues(t, 2, len(accepted))

	cmds := indexer.CommandsFromTransactions(reg, accepted...)
	// tx1: 1 delete + 2 produced, tx2: 1 delete + 2 produced
	require.EqualValues(t, 6, len(cmds))
	inr.Update(cmds)

	outsA := inr.GetUTXOsForAccount(pub(privA), reg1)
	require.EqualValues(t, 2, len(outsA))
	sum := uint64(0)
	for _, o := range outsA {
		sum += o.Output.Amount
	}
	require.EqualValues(t, 80, sum)

	outsB := inr.GetUTXOsForAccount(pub(privB), reg1)
	require.EqualValues(t, 1, len(outsB))
	require.EqualValues(t, 20, outsB[0].Output.Amount)
	require.EqualValues(t, 2, inr.NumAccounts())

	// stale entries are filtered by the state
	outsStale := inr.GetUTXOsForAccount(pub(privA), state.NewRegistry())
	require.EqualValues(t, 0, len(outsStale))
}
