package state

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/lunfardo314/scroogecoin/ledger"
	"golang.org/x/crypto/ed25519"
)

// SignatureVerifier must be deterministic and free of side effects
type SignatureVerifier func(pubKey ed25519.PublicKey, msg, sig []byte) bool

// rejection reasons
var (
	ErrNilTransaction    = errors.New("nil transaction")
	ErrInputNotFound     = errors.New("claimed output is not in the unspent set")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrDoubleClaim       = errors.New("output claimed more than once")
	ErrNonPositiveAmount = errors.New("output amount must be positive")
	ErrUnbalanced        = errors.New("outputs exceed inputs")
)

// amountSum is a 128-bit accumulator. MaxNumInputs uint64 amounts can't overflow it
type amountSum struct {
	hi, lo uint64
}

func (s *amountSum) add(v uint64) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, v, 0)
	s.hi += carry
}

func (s amountSum) greaterThan(other amountSum) bool {
	if s.hi != other.hi {
		return s.hi > other.hi
	}
	return s.lo > other.lo
}

func (s amountSum) String() string {
	if s.hi == 0 {
		return fmt.Sprintf("%d", s.lo)
	}
	return fmt.Sprintf("0x%x%016x", s.hi, s.lo)
}

// VerifyED25519 is the default signature verifier. Keys and signatures of wrong length
// are rejected rather than passed to ed25519.Verify, which panics on them
func VerifyED25519(pubKey ed25519.PublicKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, msg, sig)
}

// ValidateTransaction checks whether tx can be committed to the state st:
//   - every claimed output is unspent
//   - every input is signed by the owner of the claimed output
//   - no output is claimed twice
//   - every produced amount is positive
//   - the sum of produced amounts does not exceed the sum of consumed amounts
//
// Returns nil or the rejection reason. Does not modify st.
// If verify is nil, VerifyED25519 is used
func ValidateTransaction(st ledger.StateReadAccess, tx *ledger.Transaction, verify SignatureVerifier) error {
	if tx == nil {
		return ErrNilTransaction
	}
	if verify == nil {
		verify = VerifyED25519
	}
	inSum, err := validateInputs(st, tx, verify)
	if err != nil {
		return err
	}
	outSum, err := validateOutputs(tx)
	if err != nil {
		return err
	}
	if outSum.greaterThan(inSum) {
		return fmt.Errorf("%w: inputs %s, outputs %s", ErrUnbalanced, inSum, outSum)
	}
	return nil
}

// IsValidTx is ValidateTransaction as a predicate
func IsValidTx(st ledger.StateReadAccess, tx *ledger.Transaction, verify SignatureVerifier) bool {
	return ValidateTransaction(st, tx, verify) == nil
}

func validateInputs(st ledger.StateReadAccess, tx *ledger.Transaction, verify SignatureVerifier) (amountSum, error) {
	var sum amountSum
	var err error
	claimed := make(map[ledger.OutputID]struct{}, tx.NumInputs())

	tx.ForEachInput(func(i int, inp *ledger.Input) bool {
		if _, already := claimed[inp.OutputID]; already {
			err = fmt.Errorf("%w: %s @ input %d", ErrDoubleClaim, inp.OutputID.String(), i)
			return false
		}
		claimed[inp.OutputID] = struct{}{}

		consumed, found := st.GetUTXO(&inp.OutputID)
		if !found {
			err = fmt.Errorf("%w: %s @ input %d", ErrInputNotFound, inp.OutputID.String(), i)
			return false
		}
		if !verify(consumed.Owner, tx.SignedMessage(i), inp.Signature) {
			err = fmt.Errorf("%w @ input %d", ErrInvalidSignature, i)
			return false
		}
		sum.add(consumed.Amount)
		return true
	})
	if err != nil {
		return amountSum{}, err
	}
	return sum, nil
}

func validateOutputs(tx *ledger.Transaction) (amountSum, error) {
	var sum amountSum
	var err error
	tx.ForEachOutput(func(i int, out *ledger.Output) bool {
		if out.Amount == 0 {
			err = fmt.Errorf("%w @ output %d", ErrNonPositiveAmount, i)
			return false
		}
		sum.add(out.Amount)
		return true
	})
	if err != nil {
		return amountSum{}, err
	}
	return sum, nil
}
