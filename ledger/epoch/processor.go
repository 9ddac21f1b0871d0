package epoch

import (
	"errors"

	"github.com/lunfardo314/scroogecoin/ledger"
	"github.com/lunfardo314/scroogecoin/ledger/state"
	"github.com/lunfardo314/scroogecoin/util/fifoqueue"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Processor is a two-stage pipeline. The decoder stage parses raw transaction bytes,
	// the committer stage applies batches one epoch at a time in the order of submission.
	// The registry is owned by the committer goroutine and is never shared, readers get clones
	Processor struct {
		decoder   *fifoqueue.Queue[*request]
		committer *fifoqueue.Queue[*request]
		handler   *state.Handler
		registry  *state.Registry
		log       *zap.SugaredLogger
		epoch     atomic.Uint64
		accepted  atomic.Uint64
		rejected  atomic.Uint64
		dropped   atomic.Uint64
		stopped   atomic.Bool
		done      chan struct{}
	}

	Params struct {
		// Verifier defaults to state.VerifyED25519
		Verifier state.SignatureVerifier
		// Logger defaults to nop logger
		Logger *zap.SugaredLogger
	}

	// Result is the outcome of one epoch
	Result struct {
		Epoch    uint64
		Accepted []*ledger.Transaction
		Rejected []*state.Rejection
		// Dropped are raw transactions which could not be decoded. Index is position in the raw batch
		Dropped []*Dropped
	}

	Dropped struct {
		Index int
		Err   error
	}

	request struct {
		raw      [][]byte
		batch    []*ledger.Transaction
		dropped  []*Dropped
		onResult func(res *Result)
		snapshot chan *state.Registry
	}
)

var ErrStopped = errors.New("epoch processor is stopped")

// NewProcessor starts processor with its own copy of the genesis registry
func NewProcessor(genesis *state.Registry, par Params) *Processor {
	log := par.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ret := &Processor{
		decoder:   fifoqueue.New[*request](),
		committer: fifoqueue.New[*request](),
		handler:   state.NewHandler(state.WithVerifier(par.Verifier), state.WithLogger(log.Named("handler"))),
		registry:  genesis.Clone(),
		log:       log,
		done:      make(chan struct{}),
	}
	go ret.runDecoder()
	go ret.runCommitter()
	return ret
}

func (p *Processor) runDecoder() {
	log := p.log.Named("decoder")
	log.Infof("STARTED")

	p.decoder.Consume(func(req *request) {
		if req.raw != nil {
			req.batch, req.dropped = decodeBatch(req.raw)
			req.raw = nil
			for _, d := range req.dropped {
				log.Debugf("transaction bytes dropped @ %d. Reason: '%v'", d.Index, d.Err)
			}
		}
		p.committer.Write(req)
	})
	// close downstream
	p.committer.Close()
	log.Infof("STOPPED")
}

func (p *Processor) runCommitter() {
	log := p.log.Named("committer")
	log.Infof("STARTED. UTXOs: %d", p.registry.Len())

	p.committer.Consume(func(req *request) {
		if req.snapshot != nil {
			req.snapshot <- p.registry.Clone()
			return
		}
		res := p.processEpoch(req.batch)
		res.Dropped = req.dropped
		p.dropped.Add(uint64(len(req.dropped)))
		log.Debugf("epoch #%d: accepted %d, rejected %d, dropped %d",
			res.Epoch, len(res.Accepted), len(res.Rejected), len(res.Dropped))
		if req.onResult != nil {
			req.onResult(res)
		}
	})
	log.Infof("STOPPED after %d epochs. Accepted: %d, rejected: %d, dropped: %d",
		p.epoch.Load(), p.accepted.Load(), p.rejected.Load(), p.dropped.Load())
	close(p.done)
}

func decodeBatch(raw [][]byte) ([]*ledger.Transaction, []*Dropped) {
	txs := make([]*ledger.Transaction, 0, len(raw))
	dropped := make([]*Dropped, 0)
	for i, data := range raw {
		tx, err := ledger.TransactionFromBytes(data)
		if err != nil {
			dropped = append(dropped, &Dropped{Index: i, Err: err})
			continue
		}
		txs = append(txs, tx)
	}
	return txs, dropped
}

func (p *Processor) processEpoch(batch []*ledger.Transaction) *Result {
	rep := p.handler.HandleTxsWithReport(p.registry, batch)
	p.registry = rep.Registry
	p.accepted.Add(uint64(len(rep.Accepted)))
	p.rejected.Add(uint64(len(rep.Rejected)))
	return &Result{
		Epoch:    p.epoch.Inc(),
		Accepted: rep.Accepted,
		Rejected: rep.Rejected,
	}
}

func (p *Processor) push(req *request) error {
	if p.stopped.Load() || !p.decoder.Write(req) {
		return ErrStopped
	}
	return nil
}

// Submit enqueues the batch as one epoch. onResult, if not nil, is called from the committer
// goroutine after the batch is applied and must not block for long.
// onResult must not call Snapshot or SubmitAndWait: both wait for the committer goroutine and
// would deadlock. Hand the result over to another goroutine instead
func (p *Processor) Submit(batch []*ledger.Transaction, onResult func(res *Result)) error {
	return p.push(&request{batch: batch, onResult: onResult})
}

// SubmitBytes enqueues batch of serialized transactions as one epoch.
// Transactions which cannot be decoded are reported in Result.Dropped
func (p *Processor) SubmitBytes(raw [][]byte, onResult func(res *Result)) error {
	if raw == nil {
		raw = [][]byte{}
	}
	return p.push(&request{raw: raw, onResult: onResult})
}

// SubmitAndWait enqueues the batch and waits for its result. Must not be called from onResult
func (p *Processor) SubmitAndWait(batch []*ledger.Transaction) (*Result, error) {
	resCh := make(chan *Result, 1)
	if err := p.Submit(batch, func(res *Result) { resCh <- res }); err != nil {
		return nil, err
	}
	return <-resCh, nil
}

// Snapshot returns copy of the registry after all epochs submitted before the call.
// Must not be called from onResult
func (p *Processor) Snapshot() (*state.Registry, error) {
	ch := make(chan *state.Registry, 1)
	if err := p.push(&request{snapshot: ch}); err != nil {
		return nil, err
	}
	return <-ch, nil
}

// Stop rejects new submissions, waits until already submitted epochs are processed and
// both goroutines exit
func (p *Processor) Stop() {
	p.stopped.Store(true)
	p.decoder.Close()
	<-p.done
}

// Stats returns number of processed epochs and totals of accepted, rejected and dropped transactions
func (p *Processor) Stats() (epochs, accepted, rejected, dropped uint64) {
	return p.epoch.Load(), p.accepted.Load(), p.rejected.Load(), p.dropped.Load()
}
