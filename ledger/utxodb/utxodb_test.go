package utxodb_test

import (
	"testing"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/scroogecoin/ledger/state"
	"github.com/lunfardo314/scroogecoin/ledger/txbuilder"
	"github.com/lunfardo314/scroogecoin/ledger/utxodb"
	"github.com/stretchr/testify/require"
)

func TestUTXODB(t *testing.T) {
	t.Run("genesis", func(t *testing.T) {
		u := utxodb.NewUTXODB(true)
		_, genesisPub := u.GenesisKeys()
		out, found := u.GetUTXO(&utxodb.GenesisOutputID)
		require.True(t, found)
		require.EqualValues(t, u.Supply(), out.Amount)
		require.EqualValues(t, genesisPub, out.Owner)
		require.EqualValues(t, 1, u.NumUTXOs(genesisPub))
		require.EqualValues(t, u.Supply(), u.Balance(genesisPub))
	})
	t.Run("deterministic keys", func(t *testing.T) {
		u1 := utxodb.NewUTXODB()
		u2 := utxodb.NewUTXODB()
		priv1, pub1 := u1.GenerateKeys(7)
		priv2, pub2 := u2.GenerateKeys(7)
		require.EqualValues(t, priv1, priv2)
		require.EqualValues(t, pub1, pub2)
		_, pub3 := u1.GenerateKeys(8)
		require.NotEqualValues(t, pub1, pub3)
	})
	t.Run("faucet", func(t *testing.T) {
		u := utxodb.NewUTXODB(true)
		_, genesisPub := u.GenesisKeys()
		_, pub := u.GenerateKeys(1)
		err := u.TokensFromFaucet(pub, 10000)
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(genesisPub))
		require.EqualValues(t, u.Supply()-10000, u.Balance(genesisPub))
		require.EqualValues(t, 10000, u.Balance(pub))
		require.EqualValues(t, 1, u.NumUTXOs(pub))

		err = u.TokensFromFaucet(pub)
		require.NoError(t, err)
		require.EqualValues(t, 10000+utxodb.TokensFromFaucetDefault, u.Balance(pub))
		require.EqualValues(t, 2, u.NumUTXOs(pub))
		require.EqualValues(t, u.Supply(), u.Snapshot().Sum())
	})
	t.Run("simple transfer", func(t *testing.T) {
		u := utxodb.NewUTXODB(true)
		priv1, pub1 := u.GenerateKeys(1)
		_, pub2 := u.GenerateKeys(2)
		err := u.TokensFromFaucet(pub1, 10000)
		require.NoError(t, err)

		err = u.TransferTokens(priv1, pub2, 1000)
		require.NoError(t, err)
		require.EqualValues(t, 10000-1000, u.Balance(pub1))
		require.EqualValues(t, 1, u.NumUTXOs(pub1))
		require.EqualValues(t, 1000, u.Balance(pub2))
		require.EqualValues(t, 1, u.NumUTXOs(pub2))
	})
	t.Run("transfer wrong key", func(t *testing.T) {
		u := utxodb.NewUTXODB(true)
		priv1, pub1 := u.GenerateKeys(1)
		_, pub2 := u.GenerateKeys(2)
		privWrong, _ := u.GenerateKeys(3)
		err := u.TokensFromFaucet(pub1, 10000)
		require.NoError(t, err)

		par := u.MakeED25519TransferInputs(priv1).
			WithAmount(1000).
			WithTargetOwner(pub2)
		par.SenderPrivateKey = privWrong
		_, err = u.DoTransferTx(par)
		require.ErrorIs(t, err, state.ErrInvalidSignature)
		easyfl.RequireErrorWith(t, err, "invalid signature")
		require.EqualValues(t, 10000, u.Balance(pub1))
		require.EqualValues(t, 0, u.Balance(pub2))
	})
	t.Run("not enough tokens", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		priv1, pub1 := u.GenerateKeys(1)
		_, pub2 := u.GenerateKeys(2)
		err := u.TokensFromFaucet(pub1, 100)
		require.NoError(t, err)
		err = u.TransferTokens(priv1, pub2, 101)
		easyfl.RequireErrorWith(t, err, "not enough tokens")
		require.EqualValues(t, 100, u.Balance(pub1))
	})
	t.Run("compress outputs", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		priv, pub := u.GenerateKeys(0)
		for i := 0; i < 10; i++ {
			require.NoError(t, u.TokensFromFaucet(pub, 100))
		}
		require.EqualValues(t, 10, u.NumUTXOs(pub))
		err := u.TransferTokens(priv, pub, u.Balance(pub))
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(pub))
		require.EqualValues(t, 1000, u.Balance(pub))
	})
	t.Run("double spend in one batch", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		priv1, pub1 := u.GenerateKeys(1)
		_, pub2 := u.GenerateKeys(2)
		_, pub3 := u.GenerateKeys(3)
		require.NoError(t, u.TokensFromFaucet(pub1, 500))

		tx2, err := txbuilder.MakeTransferTransaction(u.MakeED25519TransferInputs(priv1).WithAmount(500).WithTargetOwner(pub2))
		require.NoError(t, err)
		tx3, err := txbuilder.MakeTransferTransaction(u.MakeED25519TransferInputs(priv1).WithAmount(500).WithTargetOwner(pub3))
		require.NoError(t, err)

		accepted := u.AddTransactions(tx3, tx2)
		require.EqualValues(t, []*ledger.Transaction{tx3}, accepted)
		require.EqualValues(t, 0, u.Balance(pub1))
		require.EqualValues(t, 0, u.Balance(pub2))
		require.EqualValues(t, 500, u.Balance(pub3))

		// replay in the next batch
		require.ErrorIs(t, u.AddTransaction(tx2), state.ErrInputNotFound)
	})
	t.Run("snapshot is independent", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		_, pub := u.GenerateKeys(1)
		snap := u.Snapshot()
		require.NoError(t, u.TokensFromFaucet(pub, 100))
		require.True(t, snap.Contains(utxodb.GenesisOutputID))
		require.EqualValues(t, 1, snap.Len())
		require.False(t, u.Snapshot().Contains(utxodb.GenesisOutputID))
	})
}
