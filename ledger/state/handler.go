package state

import (
	"github.com/lunfardo314/scroogecoin/ledger"
	"go.uber.org/zap"
)

type (
	// Handler applies batches of transactions to registry snapshots
	Handler struct {
		verify SignatureVerifier
		log    *zap.SugaredLogger
	}

	HandlerOption func(h *Handler)

	// Rejection is a transaction which was not committed and the reason
	Rejection struct {
		Index int
		TxID  ledger.TransactionID
		Err   error
	}

	// Report is the outcome of one batch
	Report struct {
		Accepted []*ledger.Transaction
		Rejected []*Rejection
		Registry *Registry
	}
)

func WithVerifier(verify SignatureVerifier) HandlerOption {
	return func(h *Handler) {
		h.verify = verify
	}
}

func WithLogger(log *zap.SugaredLogger) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

// NewHandler by default verifies ED25519 signatures and does not log
func NewHandler(opts ...HandlerOption) *Handler {
	ret := &Handler{
		verify: VerifyED25519,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.verify == nil {
		ret.verify = VerifyED25519
	}
	if ret.log == nil {
		ret.log = zap.NewNop().Sugar()
	}
	return ret
}

func (h *Handler) ValidateTransaction(st ledger.StateReadAccess, tx *ledger.Transaction) error {
	return ValidateTransaction(st, tx, h.verify)
}

func (h *Handler) IsValidTx(st ledger.StateReadAccess, tx *ledger.Transaction) bool {
	return h.ValidateTransaction(st, tx) == nil
}

// HandleTxs commits valid transactions in the order of the batch to a copy of reg.
// A transaction conflicting with an earlier accepted one in the same batch fails validation
// against the updated copy and is skipped. reg itself is never modified
func (h *Handler) HandleTxs(reg *Registry, txs []*ledger.Transaction) ([]*ledger.Transaction, *Registry) {
	rep := h.HandleTxsWithReport(reg, txs)
	return rep.Accepted, rep.Registry
}

// HandleTxsWithReport is HandleTxs which also reports rejected transactions with reasons
func (h *Handler) HandleTxsWithReport(reg *Registry, txs []*ledger.Transaction) *Report {
	ret := &Report{
		Accepted: make([]*ledger.Transaction, 0, len(txs)),
		Rejected: make([]*Rejection, 0),
		Registry: reg.Clone(),
	}
	for i, tx := range txs {
		if err := h.ValidateTransaction(ret.Registry, tx); err != nil {
			rej := &Rejection{Index: i, Err: err}
			if tx != nil {
				rej.TxID = tx.ID()
			}
			h.log.Debugf("rejected tx #%d %s: %v", i, rej.TxID.Short(), err)
			ret.Rejected = append(ret.Rejected, rej)
			continue
		}
		commitTransaction(ret.Registry, tx)
		txid := tx.ID()
		h.log.Debugf("accepted tx #%d %s", i, txid.Short())
		ret.Accepted = append(ret.Accepted, tx)
	}
	h.log.Infof("batch of %d transactions: accepted %d, rejected %d. UTXOs: %d -> %d",
		len(txs), len(ret.Accepted), len(ret.Rejected), reg.Len(), ret.Registry.Len())
	return ret
}

// HandleTxs with the default handler
func HandleTxs(reg *Registry, txs []*ledger.Transaction, verify SignatureVerifier) ([]*ledger.Transaction, *Registry) {
	return NewHandler(WithVerifier(verify)).HandleTxs(reg, txs)
}

// commitTransaction deletes consumed outputs and adds produced ones. The transaction must be
// validated against reg, so any failure here is a broken invariant and panics
func commitTransaction(reg *Registry, tx *ledger.Transaction) {
	tx.ForEachInput(func(_ int, inp *ledger.Input) bool {
		reg.MustRemove(inp.OutputID)
		return true
	})
	tx.ForEachOutput(func(i int, out *ledger.Output) bool {
		reg.MustInsert(tx.ProducedOutputID(i), out)
		return true
	})
}
