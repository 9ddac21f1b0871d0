package txbuilder

import (
	"crypto/ed25519"
	"fmt"
	"math"
	"sort"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin/ledger"
)

// TransactionBuilder collects inputs and outputs and produces a signed transaction.
// Each consumed output is signed with the key given at ConsumeOutput
type TransactionBuilder struct {
	ConsumedOutputs []*ledger.Output
	InputIDs        []ledger.OutputID
	Outputs         []*ledger.Output
	signers         []ed25519.PrivateKey
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		ConsumedOutputs: make([]*ledger.Output, 0),
		InputIDs:        make([]ledger.OutputID, 0),
		Outputs:         make([]*ledger.Output, 0),
		signers:         make([]ed25519.PrivateKey, 0),
	}
}

func (b *TransactionBuilder) NumInputs() int {
	ret := len(b.ConsumedOutputs)
	easyfl.Assert(ret == len(b.InputIDs) && ret == len(b.signers), "inconsistent number of inputs")
	return ret
}

func (b *TransactionBuilder) NumOutputs() int {
	return len(b.Outputs)
}

// ConsumeOutput adds input which claims output oid, to be signed by signer. out is the claimed output
// as known to the builder, used only by InputsSum, may be nil. Returns index of the input
func (b *TransactionBuilder) ConsumeOutput(out *ledger.Output, oid ledger.OutputID, signer ed25519.PrivateKey) (int, error) {
	if b.NumInputs() >= ledger.MaxNumInputs {
		return 0, fmt.Errorf("too many consumed outputs")
	}
	b.ConsumedOutputs = append(b.ConsumedOutputs, out)
	b.InputIDs = append(b.InputIDs, oid)
	b.signers = append(b.signers, signer)
	return len(b.ConsumedOutputs) - 1, nil
}

func (b *TransactionBuilder) ProduceOutput(out *ledger.Output) (int, error) {
	if b.NumOutputs() >= ledger.MaxNumOutputs {
		return 0, fmt.Errorf("too many produced outputs")
	}
	b.Outputs = append(b.Outputs, out)
	return len(b.Outputs) - 1, nil
}

// SetSigner replaces the key the input at idx will be signed with
func (b *TransactionBuilder) SetSigner(idx int, signer ed25519.PrivateKey) {
	b.signers[idx] = signer
}

// InputsSum is the sum of consumed outputs known to the builder. Returns error on overflow
func (b *TransactionBuilder) InputsSum() (uint64, error) {
	var ret uint64
	for _, o := range b.ConsumedOutputs {
		if o == nil {
			continue
		}
		if o.Amount > math.MaxUint64-ret {
			return 0, fmt.Errorf("InputsSum: arithmetic overflow")
		}
		ret += o.Amount
	}
	return ret, nil
}

// OutputsSum is the sum of produced outputs. Returns error on overflow
func (b *TransactionBuilder) OutputsSum() (uint64, error) {
	var ret uint64
	for _, o := range b.Outputs {
		if o.Amount > math.MaxUint64-ret {
			return 0, fmt.Errorf("OutputsSum: arithmetic overflow")
		}
		ret += o.Amount
	}
	return ret, nil
}

// Build signs every input with its signer and returns the final transaction.
// Inputs with nil signer are left unsigned
func (b *TransactionBuilder) Build() (*ledger.Transaction, error) {
	inputs := make([]ledger.Input, b.NumInputs())
	for i := range inputs {
		inputs[i].OutputID = b.InputIDs[i]
	}
	draft, err := ledger.NewTransaction(inputs, b.Outputs)
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		if b.signers[i] == nil {
			continue
		}
		inputs[i].Signature = ed25519.Sign(b.signers[i], draft.SignedMessage(i))
	}
	return ledger.NewTransaction(inputs, b.Outputs)
}

//---------------------------------------------------------

type ED25519TransferInputs struct {
	SenderPrivateKey ed25519.PrivateKey
	SenderPublicKey  ed25519.PublicKey
	Outputs          []*ledger.OutputWithID
	TargetOwner      ed25519.PublicKey
	Amount           uint64
}

func NewED25519TransferInputs(senderKey ed25519.PrivateKey) *ED25519TransferInputs {
	return &ED25519TransferInputs{
		SenderPrivateKey: senderKey,
		SenderPublicKey:  senderKey.Public().(ed25519.PublicKey),
	}
}

func (t *ED25519TransferInputs) WithTargetOwner(owner ed25519.PublicKey) *ED25519TransferInputs {
	t.TargetOwner = owner
	return t
}

func (t *ED25519TransferInputs) WithAmount(amount uint64) *ED25519TransferInputs {
	t.Amount = amount
	return t
}

// WithOutputs sets outputs available for consumption. They are consumed in the given order
func (t *ED25519TransferInputs) WithOutputs(outs []*ledger.OutputWithID) *ED25519TransferInputs {
	t.Outputs = outs
	return t
}

// MakeTransferTransaction consumes sender's outputs in order until the amount is covered,
// produces the target output and, if needed, the remainder output back to the sender
func MakeTransferTransaction(par *ED25519TransferInputs) (*ledger.Transaction, error) {
	if par.Amount == 0 {
		return nil, fmt.Errorf("MakeTransferTransaction: amount must be positive")
	}
	b := NewTransactionBuilder()
	availableTokens := uint64(0)
	for _, o := range par.Outputs {
		if availableTokens >= par.Amount {
			break
		}
		if o.Output.Amount > math.MaxUint64-availableTokens {
			return nil, fmt.Errorf("MakeTransferTransaction: arithmetic overflow")
		}
		if _, err := b.ConsumeOutput(o.Output, o.ID, par.SenderPrivateKey); err != nil {
			return nil, err
		}
		availableTokens += o.Output.Amount
	}
	if availableTokens < par.Amount {
		return nil, fmt.Errorf("not enough tokens in account %s: needed %d, got %d",
			easyfl.Fmt(par.SenderPublicKey), par.Amount, availableTokens)
	}
	if _, err := b.ProduceOutput(ledger.NewOutput(par.Amount, par.TargetOwner)); err != nil {
		return nil, err
	}
	if availableTokens > par.Amount {
		if _, err := b.ProduceOutput(ledger.NewOutput(availableTokens-par.Amount, par.SenderPublicKey)); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// SortOutputsByAmount sorts outputs by amount, descending if desc, ties by ID
func SortOutputsByAmount(outs []*ledger.OutputWithID, desc ...bool) {
	descending := len(desc) > 0 && desc[0]
	sort.Slice(outs, func(i, j int) bool {
		if outs[i].Output.Amount != outs[j].Output.Amount {
			if descending {
				return outs[i].Output.Amount > outs[j].Output.Amount
			}
			return outs[i].Output.Amount < outs[j].Output.Amount
		}
		return outs[i].ID.Less(&outs[j].ID)
	})
}
