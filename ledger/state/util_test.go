package state_test

import (
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/scroogecoin/ledger/state"
	"github.com/lunfardo314/scroogecoin/ledger/txbuilder"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type account struct {
	name string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func newAccount(name string) *account {
	seed := blake2b.Sum256([]byte(fmt.Sprintf("test account %s", name)))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return &account{
		name: name,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}
}

var (
	scrooge = newAccount("scrooge")
	alice   = newAccount("alice")
	bob     = newAccount("bob")
	charlie = newAccount("charlie")
)

type claim struct {
	oid    ledger.OutputID
	signer *account
}

func claimOf(oid ledger.OutputID, signer *account) claim {
	return claim{oid: oid, signer: signer}
}

func makeTx(t *testing.T, claims []claim, outs ...*ledger.Output) *ledger.Transaction {
	b := txbuilder.NewTransactionBuilder()
	for _, c := range claims {
		var signer ed25519.PrivateKey
		if c.signer != nil {
			signer = c.signer.priv
		}
		_, err := b.ConsumeOutput(nil, c.oid, signer)
		require.NoError(t, err)
	}
	for _, o := range outs {
		_, err := b.ProduceOutput(o)
		require.NoError(t, err)
	}
	tx, err := b.Build()
	require.NoError(t, err)
	return tx
}

func pay(amount uint64, to *account) *ledger.Output {
	return ledger.NewOutput(amount, to.pub)
}

// genesis returns registry with single output of 10 owned by scrooge
func genesis(t *testing.T) (*state.Registry, ledger.OutputID) {
	genesisTx := makeTx(t, nil, pay(10, scrooge))
	oid := genesisTx.ProducedOutputID(0)
	reg, err := state.NewRegistryFromOutputs(&ledger.OutputWithID{
		ID:     oid,
		Output: genesisTx.Output(0),
	})
	require.NoError(t, err)
	return reg, oid
}
