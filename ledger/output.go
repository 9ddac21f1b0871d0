package ledger

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin"
	"github.com/lunfardo314/scroogecoin/lazyslice"
	"github.com/lunfardo314/unitrie/common"
)

// Output is a payment of Amount minor units to the holder of the private key of Owner
type Output struct {
	Amount uint64
	Owner  ed25519.PublicKey
}

const (
	outputIndexAmount = iota
	outputIndexOwner
	outputNumElements
)

func NewOutput(amount uint64, owner ed25519.PublicKey) *Output {
	return &Output{
		Amount: amount,
		Owner:  owner,
	}
}

func OutputFromBytes(data []byte) (*Output, error) {
	arr, err := lazyslice.ParseArray(data, outputNumElements)
	if err != nil {
		return nil, fmt.Errorf("OutputFromBytes: %w", err)
	}
	if arr.NumElements() != outputNumElements {
		return nil, fmt.Errorf("OutputFromBytes: expected %d elements, got %d", outputNumElements, arr.NumElements())
	}
	amount, err := scroogecoin.DecodeIntegerChecked[uint64](arr.At(outputIndexAmount))
	if err != nil {
		return nil, fmt.Errorf("OutputFromBytes: amount: %w", err)
	}
	return NewOutput(amount, common.Concat(arr.At(outputIndexOwner))), nil
}

func (o *Output) Bytes() []byte {
	return lazyslice.MakeArray(scroogecoin.EncodeInteger(o.Amount), o.Owner).Bytes()
}

// Clone makes a deep copy, the owner key is not shared with the original
func (o *Output) Clone() *Output {
	return NewOutput(o.Amount, common.Concat([]byte(o.Owner)))
}

func (o *Output) Equal(other *Output) bool {
	return o.Amount == other.Amount && bytes.Equal(o.Owner, other.Owner)
}

func (o *Output) String() string {
	return fmt.Sprintf("amount: %d, owner: %s", o.Amount, easyfl.Fmt(o.Owner))
}
