package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrJobPaid is returned when a recompute is refused because a payment has
// already been recorded against the job and the policy blocks it.
var ErrJobPaid = errors.New("job already has a recorded payment")

// LineSource reads the three cost streams of a job.
type LineSource interface {
	WorkOrderLines(ctx context.Context, jobID string) ([]Line, error)
	SpareChangeLines(ctx context.Context, jobID string) ([]Line, error)
	OutsourceGroups(ctx context.Context, jobID string) ([]OutsourceGroup, error)
}

// PaymentLedger answers whether a job already has a payment on record.
type PaymentLedger interface {
	HasPayment(ctx context.Context, jobID string) (bool, error)
}

// PostPaymentPolicy decides what a recompute does for a job that already
// has a payment recorded against an earlier total.
type PostPaymentPolicy string

const (
	PolicyAllow PostPaymentPolicy = "allow"
	PolicyFlag  PostPaymentPolicy = "flag"
	PolicyBlock PostPaymentPolicy = "block"
)

// Valid reports whether p is a known policy.
func (p PostPaymentPolicy) Valid() bool {
	switch p {
	case PolicyAllow, PolicyFlag, PolicyBlock:
		return true
	}
	return false
}

// VatFlags selects which streams are taxed.
type VatFlags struct {
	Labor     bool `json:"includeLaborVAT"`
	Spare     bool `json:"includeSpareVAT"`
	Outsource bool `json:"includeOutsourceVAT"`
}

// Trigger is a dependency-changed event for one job: stream data, a VAT
// flag or the additional cost changed, or the job was opened.
type Trigger struct {
	JobID          string
	Flags          VatFlags
	AdditionalCost any
	Reason         string
}

// StreamWarning records a stream whose fetch failed during a pass. The
// stream counted as 0, which is different from a stream that is empty.
type StreamWarning struct {
	Stream Stream `json:"stream"`
	Err    error  `json:"-"`
}

func (w StreamWarning) String() string {
	return fmt.Sprintf("%s lines could not be loaded: %v", w.Stream, w.Err)
}

// PassResult describes one recomputation pass.
type PassResult struct {
	PassID          string
	JobID           string
	Seq             uint64
	Summary         CostSummary
	Warnings        []StreamWarning
	MalformedGroups int
	Published       bool
	Stale           bool
	Flagged         bool
}

// Partial reports whether at least one stream failed to load.
func (r PassResult) Partial() bool {
	return len(r.Warnings) > 0
}

// WarningMessages renders the warnings for display.
func (r PassResult) WarningMessages() []string {
	if len(r.Warnings) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		msgs[i] = w.String()
	}
	return msgs
}

// CostEngine runs recomputation passes: fetch the three streams
// concurrently, normalize, aggregate, reconcile, and publish.
type CostEngine struct {
	source  LineSource
	store   TotalStore
	ledger  PaymentLedger
	policy  PostPaymentPolicy
	vatRate float64
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
	seq     atomic.Uint64
}

// EngineOption configures a CostEngine.
type EngineOption func(*CostEngine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *CostEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVATRate overrides VATRate.
func WithVATRate(rate float64) EngineOption {
	return func(e *CostEngine) { e.vatRate = rate }
}

// WithPaymentPolicy sets the ledger consulted before publishing and the
// policy applied when the job already has a payment.
func WithPaymentPolicy(ledger PaymentLedger, policy PostPaymentPolicy) EngineOption {
	return func(e *CostEngine) {
		e.ledger = ledger
		e.policy = policy
	}
}

// WithFetchTimeout bounds each stream fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *CostEngine) { e.timeout = d }
}

// WithClock replaces time.Now for publish timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *CostEngine) { e.now = now }
}

// NewCostEngine builds an engine over source publishing into store. Pass
// sequence numbers continue after the highest sequence the store holds.
func NewCostEngine(source LineSource, store TotalStore, opts ...EngineOption) *CostEngine {
	e := &CostEngine{
		source:  source,
		store:   store,
		policy:  PolicyAllow,
		vatRate: VATRate,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.seq.Store(store.LastSeq())
	e.logger = e.logger.With(zap.String("component", "cost_engine"))
	return e
}

// Store returns the store the engine publishes into.
func (e *CostEngine) Store() TotalStore {
	return e.store
}

// Recompute runs one pass for the job in t. The sequence number is taken
// when the pass starts, so a slower, older pass that finishes last is
// rejected by the store instead of overwriting the newer total.
//
// A failed stream fetch does not fail the pass; it is reported in
// PassResult.Warnings. Recompute fails with ErrJobPaid under PolicyBlock,
// and with ctx.Err() when ctx ends before the streams are in: a pass whose
// caller went away publishes nothing.
func (e *CostEngine) Recompute(ctx context.Context, t Trigger) (PassResult, error) {
	result := PassResult{
		PassID: uuid.NewString(),
		JobID:  t.JobID,
		Seq:    e.seq.Add(1),
	}
	log := e.logger.With(
		zap.String("job_id", t.JobID),
		zap.Uint64("seq", result.Seq),
		zap.String("pass_id", result.PassID),
		zap.String("reason", t.Reason),
	)

	var (
		laborLines, partsLines []Line
		groups                 []OutsourceGroup
		laborErr, partsErr     error
		outsourceErr           error
	)

	// Each fetch records its own error so one failing stream never
	// cancels the others.
	var g errgroup.Group
	g.Go(func() error {
		laborLines, laborErr = e.fetchLines(ctx, t.JobID, e.source.WorkOrderLines)
		return nil
	})
	g.Go(func() error {
		partsLines, partsErr = e.fetchLines(ctx, t.JobID, e.source.SpareChangeLines)
		return nil
	})
	g.Go(func() error {
		fctx, cancel := e.fetchContext(ctx)
		defer cancel()
		groups, outsourceErr = e.source.OutsourceGroups(fctx, t.JobID)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Info("pass abandoned, caller context ended", zap.Error(err))
		return result, fmt.Errorf("recompute job %s: %w", t.JobID, err)
	}

	for _, w := range []StreamWarning{
		{Stream: StreamLabor, Err: laborErr},
		{Stream: StreamParts, Err: partsErr},
		{Stream: StreamOutsource, Err: outsourceErr},
	} {
		if w.Err != nil {
			log.Warn("stream fetch failed, counting it as zero",
				zap.String("stream", string(w.Stream)), zap.Error(w.Err))
			result.Warnings = append(result.Warnings, w)
		}
	}
	if laborErr != nil {
		laborLines = nil
	}
	if partsErr != nil {
		partsLines = nil
	}
	if outsourceErr != nil {
		groups = nil
	}

	for _, grp := range groups {
		if grp.Malformed {
			result.MalformedGroups++
			log.Warn("discarded malformed outsource details", zap.String("outsource_id", grp.ID))
		}
	}

	result.Summary = ReconcileAt(e.vatRate, Streams{
		Labor:     StreamInput{Subtotal: LaborSubtotal(laborLines), VATIncluded: t.Flags.Labor},
		Parts:     StreamInput{Subtotal: PartsSubtotal(partsLines), VATIncluded: t.Flags.Spare},
		Outsource: StreamInput{Subtotal: OutsourceSubtotal(groups), VATIncluded: t.Flags.Outsource},
	}, t.AdditionalCost)

	if e.paid(ctx, t.JobID, log) {
		if e.policy == PolicyBlock {
			log.Info("recompute blocked, job already paid")
			return result, ErrJobPaid
		}
		result.Flagged = true
	}

	result.Published = e.store.Publish(PublishedTotal{
		JobID:       t.JobID,
		Seq:         result.Seq,
		Summary:     result.Summary,
		Warnings:    result.WarningMessages(),
		Flagged:     result.Flagged,
		PublishedAt: e.now(),
	})
	result.Stale = !result.Published

	if result.Stale {
		log.Info("discarded stale pass")
	} else {
		log.Debug("published job total",
			zap.Float64("grand_total", result.Summary.GrandTotal),
			zap.Bool("partial", result.Partial()),
			zap.Bool("flagged", result.Flagged))
	}
	return result, nil
}

// PaymentBlocked reports whether passes for jobID are refused because the
// job has a payment and the policy is PolicyBlock.
func (e *CostEngine) PaymentBlocked(ctx context.Context, jobID string) bool {
	return e.policy == PolicyBlock && e.paid(ctx, jobID, e.logger.With(zap.String("job_id", jobID)))
}

// paid consults the ledger unless the policy ignores payments. A ledger
// error counts as unpaid.
func (e *CostEngine) paid(ctx context.Context, jobID string, log *zap.Logger) bool {
	if e.ledger == nil || e.policy == PolicyAllow {
		return false
	}
	paid, err := e.ledger.HasPayment(ctx, jobID)
	if err != nil {
		log.Warn("could not check payments for job", zap.Error(err))
		return false
	}
	return paid
}

func (e *CostEngine) fetchLines(ctx context.Context, jobID string, fetch func(context.Context, string) ([]Line, error)) ([]Line, error) {
	fctx, cancel := e.fetchContext(ctx)
	defer cancel()
	return fetch(fctx, jobID)
}

func (e *CostEngine) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}
