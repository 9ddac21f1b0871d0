package ledger

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin"
	"github.com/lunfardo314/scroogecoin/lazyslice"
	"github.com/lunfardo314/unitrie/common"
	"golang.org/x/crypto/blake2b"
)

type (
	// Input claims the unspent output OutputID. Signature must be valid for the owner of
	// the claimed output over the signed message of the input's position
	Input struct {
		OutputID  OutputID
		Signature []byte
	}

	// Transaction is immutable. All accessors return copies
	Transaction struct {
		inputs  []Input
		outputs []*Output
		essence []byte
		bytes   []byte
		id      TransactionID
	}
)

const (
	txIndexInputs = iota
	txIndexOutputs
	txNumElements
)

const (
	inputIndexOutputID = iota
	inputIndexSignature
	inputNumElements
)

// NewTransaction copies inputs and outputs and computes the identity of the transaction
func NewTransaction(inputs []Input, outputs []*Output) (*Transaction, error) {
	if len(inputs) > MaxNumInputs {
		return nil, fmt.Errorf("NewTransaction: number of inputs %d exceeds maximum %d", len(inputs), MaxNumInputs)
	}
	if len(outputs) > MaxNumOutputs {
		return nil, fmt.Errorf("NewTransaction: number of outputs %d exceeds maximum %d", len(outputs), MaxNumOutputs)
	}
	ret := &Transaction{
		inputs:  make([]Input, len(inputs)),
		outputs: make([]*Output, len(outputs)),
	}
	for i := range inputs {
		ret.inputs[i] = Input{
			OutputID:  inputs[i].OutputID,
			Signature: common.Concat(inputs[i].Signature),
		}
	}
	for i, o := range outputs {
		if o == nil {
			return nil, fmt.Errorf("NewTransaction: output #%d is nil", i)
		}
		ret.outputs[i] = o.Clone()
	}
	ret.essence = ret.encode(false)
	ret.bytes = ret.encode(true)
	ret.id = blake2b.Sum256(ret.bytes)
	return ret, nil
}

// TransactionFromBytes parses canonical transaction bytes
func TransactionFromBytes(data []byte) (*Transaction, error) {
	var ret *Transaction
	err := common.CatchPanicOrError(func() error {
		var err1 error
		ret, err1 = transactionFromBytes(data)
		return err1
	})
	if err != nil {
		return nil, fmt.Errorf("TransactionFromBytes: %w", err)
	}
	return ret, nil
}

func transactionFromBytes(data []byte) (*Transaction, error) {
	arr, err := lazyslice.ParseArray(data, txNumElements)
	if err != nil {
		return nil, err
	}
	if arr.NumElements() != txNumElements {
		return nil, fmt.Errorf("expected %d elements, got %d", txNumElements, arr.NumElements())
	}
	inputsArr, err := lazyslice.ParseArray(arr.At(txIndexInputs), MaxNumInputs)
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	inputs := make([]Input, inputsArr.NumElements())
	for i := range inputs {
		inArr, err := lazyslice.ParseArray(inputsArr.At(i), inputNumElements)
		if err != nil {
			return nil, fmt.Errorf("input #%d: %w", i, err)
		}
		if inArr.NumElements() != inputNumElements {
			return nil, fmt.Errorf("input #%d: expected %d elements, got %d", i, inputNumElements, inArr.NumElements())
		}
		if inputs[i].OutputID, err = OutputIDFromBytes(inArr.At(inputIndexOutputID)); err != nil {
			return nil, fmt.Errorf("input #%d: %w", i, err)
		}
		inputs[i].Signature = inArr.At(inputIndexSignature)
	}
	outputsArr, err := lazyslice.ParseArray(arr.At(txIndexOutputs), MaxNumOutputs)
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	outputs := make([]*Output, outputsArr.NumElements())
	for i := range outputs {
		if outputs[i], err = OutputFromBytes(outputsArr.At(i)); err != nil {
			return nil, fmt.Errorf("output #%d: %w", i, err)
		}
	}
	ret, err := NewTransaction(inputs, outputs)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(ret.bytes, data) {
		return nil, fmt.Errorf("non-canonical transaction encoding")
	}
	return ret, nil
}

func (tx *Transaction) encode(withSignatures bool) []byte {
	inputsArr := lazyslice.EmptyArray(MaxNumInputs)
	for i := range tx.inputs {
		var sig []byte
		if withSignatures {
			sig = tx.inputs[i].Signature
		}
		inputsArr.Push(lazyslice.MakeArray(tx.inputs[i].OutputID[:], sig).Bytes())
	}
	outputsArr := lazyslice.EmptyArray(MaxNumOutputs)
	for _, o := range tx.outputs {
		outputsArr.Push(o.Bytes())
	}
	return lazyslice.MakeArray(inputsArr.Bytes(), outputsArr.Bytes()).Bytes()
}

func (tx *Transaction) ID() TransactionID {
	return tx.id
}

func (tx *Transaction) Bytes() []byte {
	return common.Concat(tx.bytes)
}

func (tx *Transaction) NumInputs() int {
	return len(tx.inputs)
}

func (tx *Transaction) NumOutputs() int {
	return len(tx.outputs)
}

func (tx *Transaction) Input(idx int) Input {
	return Input{
		OutputID:  tx.inputs[idx].OutputID,
		Signature: common.Concat(tx.inputs[idx].Signature),
	}
}

func (tx *Transaction) Output(idx int) *Output {
	return tx.outputs[idx].Clone()
}

// ForEachInput iterates inputs in their order. The signature slice must not be modified
func (tx *Transaction) ForEachInput(fun func(idx int, inp *Input) bool) {
	for i := range tx.inputs {
		if !fun(i, &tx.inputs[i]) {
			return
		}
	}
}

// ForEachOutput iterates outputs in their order. The output must not be modified
func (tx *Transaction) ForEachOutput(fun func(idx int, out *Output) bool) {
	for i, o := range tx.outputs {
		if !fun(i, o) {
			return
		}
	}
}

// ProducedOutputID is the ID the output at idx will have in the ledger once the transaction is committed
func (tx *Transaction) ProducedOutputID(idx int) OutputID {
	easyfl.Assert(idx >= 0 && idx < len(tx.outputs), "ProducedOutputID: index %d out of range", idx)
	return NewOutputID(tx.id, uint16(idx))
}

// SignedMessage is the message the signature of the input at idx must cover: the position of the
// input followed by the transaction bytes with all signatures left empty.
// Does not depend on any signature, so it is the same before and after signing
func (tx *Transaction) SignedMessage(idx int) []byte {
	easyfl.Assert(idx >= 0 && idx < len(tx.inputs), "SignedMessage: index %d out of range", idx)
	return common.Concat(scroogecoin.EncodeInteger(uint16(idx)), tx.essence)
}

func (tx *Transaction) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Transaction %s\n", tx.id.String())
	for i := range tx.inputs {
		fmt.Fprintf(&buf, "   in #%d: %s, sig: %d bytes\n", i, tx.inputs[i].OutputID.String(), len(tx.inputs[i].Signature))
	}
	for i, o := range tx.outputs {
		fmt.Fprintf(&buf, "   out #%d: %s\n", i, o.String())
	}
	return buf.String()
}
