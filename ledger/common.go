package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/scroogecoin"
)

const (
	TransactionIDLength = 32
	OutputIDLength      = TransactionIDLength + 2

	MaxNumInputs  = 256
	MaxNumOutputs = 256
)

type (
	TransactionID [TransactionIDLength]byte

	// OutputID references an output by the ID of the producing transaction and the position
	// of the output in it. Comparable, so it is used directly as a map key
	OutputID [OutputIDLength]byte

	// StateReadAccess is a read-only view of the set of unspent outputs
	StateReadAccess interface {
		GetUTXO(oid *OutputID) (*Output, bool)
	}
)

func TransactionIDFromBytes(data []byte) (ret TransactionID, err error) {
	if len(data) != TransactionIDLength {
		err = errors.New("TransactionIDFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (txid *TransactionID) Bytes() []byte {
	return txid[:]
}

func (txid *TransactionID) String() string {
	return easyfl.Fmt(txid[:])
}

// Short is the first 4 bytes of the ID in hex, for logging
func (txid *TransactionID) Short() string {
	return easyfl.Fmt(txid[:4]) + ".."
}

func NewOutputID(txid TransactionID, idx uint16) (ret OutputID) {
	copy(ret[:TransactionIDLength], txid[:])
	copy(ret[TransactionIDLength:], scroogecoin.EncodeInteger(idx))
	return
}

func OutputIDFromBytes(data []byte) (ret OutputID, err error) {
	if len(data) != OutputIDLength {
		err = errors.New("OutputIDFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (oid *OutputID) TransactionID() (ret TransactionID) {
	copy(ret[:], oid[:TransactionIDLength])
	return
}

func (oid *OutputID) Index() uint16 {
	return scroogecoin.DecodeInteger[uint16](oid[TransactionIDLength:])
}

func (oid *OutputID) Bytes() []byte {
	return oid[:]
}

func (oid *OutputID) String() string {
	txid := oid.TransactionID()
	return fmt.Sprintf("[%d]%s", oid.Index(), txid.String())
}

// Less orders output IDs by transaction ID, then by index
func (oid *OutputID) Less(other *OutputID) bool {
	return bytes.Compare(oid[:], other[:]) < 0
}

// OutputWithID is an unspent output together with its reference
type OutputWithID struct {
	ID     OutputID
	Output *Output
}
