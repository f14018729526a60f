// Package agent runs one clone's per-minute execution tick: resolve the
// active indicator record, enforce protective exits, then trade either on
// its own or through the review queue.
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"cloneexec/internal/audit"
	"cloneexec/internal/dedup"
	"cloneexec/internal/gateway/cockpit"
	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/indicator"
	"cloneexec/internal/logger"
	"cloneexec/internal/metrics"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/fault"
	"cloneexec/internal/strategy/exit"

	"github.com/google/uuid"
)

// RecordResolver returns the indicator record active at a tick, or nil.
type RecordResolver interface {
	Resolve(ctx context.Context, tick time.Time) (*indicator.Record, error)
}

// ReviewQueue is the remote store of signals awaiting or past human review.
type ReviewQueue interface {
	SettingsSource
	SignalsByCloneID(ctx context.Context, cloneID string, state cockpit.State) ([]cockpit.Signal, error)
	CreateSignal(ctx context.Context, cloneID string, msg ordermsg.Message) (cockpit.Signal, error)
	UpdateSignal(ctx context.Context, id string, msg ordermsg.Message) error
}

type Options struct {
	CloneID string
	Market  ordermsg.Market
	// Override forces the mode regardless of the remote autopilot flag.
	Override *bool
}

type Deps struct {
	Resolver RecordResolver
	Gateway  exchange.Gateway
	Queue    ReviewQueue
	Audit    audit.Sink
	Guard    *dedup.Guard
	Ledger   dedup.Ledger
	Metrics  *metrics.Metrics
}

type Agent struct {
	cloneID  string
	market   ordermsg.Market
	resolver RecordResolver
	gw       exchange.Gateway
	queue    ReviewQueue
	sink     audit.Sink
	guard    *dedup.Guard
	ledger   dedup.Ledger
	metrics  *metrics.Metrics
	router   *Router

	mu sync.Mutex
}

func New(opts Options, deps Deps) (*Agent, error) {
	cloneID := strings.TrimSpace(opts.CloneID)
	if cloneID == "" {
		return nil, fault.Configuration("clone id not defined")
	}
	if deps.Resolver == nil {
		return nil, fault.Configuration("indicator resolver is required")
	}
	if deps.Gateway == nil {
		return nil, fault.Configuration("exchange gateway is required")
	}
	if deps.Queue == nil && opts.Override == nil {
		return nil, fault.Configuration("review queue is required unless autopilot is overridden")
	}
	if deps.Audit == nil {
		deps.Audit = audit.Multi{}
	}
	if deps.Guard == nil {
		deps.Guard = dedup.NewGuard(dedup.NewMemoryStore(), cloneID)
	}
	deps.Ledger = dedup.Remembering(deps.Ledger)
	var source SettingsSource
	if deps.Queue != nil {
		source = deps.Queue
	}
	return &Agent{
		cloneID:  cloneID,
		market:   opts.Market,
		resolver: deps.Resolver,
		gw:       deps.Gateway,
		queue:    deps.Queue,
		sink:     deps.Audit,
		guard:    deps.Guard,
		ledger:   deps.Ledger,
		metrics:  deps.Metrics,
		router:   NewRouter(source, cloneID, opts.Override),
	}, nil
}

func (a *Agent) CloneID() string { return a.cloneID }

func (a *Agent) Router() *Router { return a.router }

func (a *Agent) Guard() *dedup.Guard { return a.guard }

func (a *Agent) Market() ordermsg.Market { return a.market }

// tick carries what one run has read so far.
type tick struct {
	at   time.Time
	log  logger.Scope
	rec  *indicator.Record
	bal  exchange.Balance
	rate float64
}

// Tick runs one tick for the instant at and reports how it ended.
func (a *Agent) Tick(ctx context.Context, at time.Time) Outcome {
	outcome, _ := a.TickErr(ctx, at)
	return outcome
}

// TickErr is Tick that also returns the error behind a non-OK outcome.
func (a *Agent) TickErr(ctx context.Context, at time.Time) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := &tick{at: at.UTC(), log: logger.For("Agent", uuid.NewString())}
	t.log.Debugf("tick %s clone=%s", t.at.Format(time.RFC3339), a.cloneID)

	err := a.run(ctx, t)
	outcome := Classify(err)
	switch outcome {
	case OutcomeOK:
		if err != nil {
			t.log.Warnf("tick finished with handled error: %v", err)
		}
	case OutcomeRetry:
		t.log.Warnf("tick will be retried: %v", err)
	case OutcomeFail:
		t.log.Errorf("tick failed: %v", err)
	}
	a.metrics.Tick(outcome.String(), time.Now())
	return outcome, err
}

func (a *Agent) run(ctx context.Context, t *tick) error {
	if err := a.guard.Load(ctx); err != nil {
		return err
	}
	rec, err := a.resolver.Resolve(ctx, t.at)
	if err != nil {
		return err
	}
	t.rec = rec

	if t.bal, err = a.gw.AvailableBalance(ctx); err != nil {
		return fault.Transient("read balance: %v", err)
	}
	if t.rate, err = a.gw.MarketRate(ctx); err != nil {
		return fault.Transient("read market rate: %v", err)
	}

	if done, err := a.checkExit(ctx, t); done || err != nil {
		return err
	}
	if rec == nil {
		t.log.Infof("no active indicator record, nothing to do")
		return nil
	}

	mode, err := a.router.Route(ctx)
	if err != nil {
		return err
	}
	t.log.Debugf("record seq=%d signal=%s mode=%s", rec.Sequence, rec.Signal, mode)
	if mode == ModeAutonomous {
		return a.autonomous(ctx, t)
	}
	return a.reviewed(ctx, t)
}

// thresholds come from the active record, or from the last committed one.
func (a *Agent) thresholds(t *tick) exit.Thresholds {
	if t.rec != nil {
		return exit.Thresholds{StopLoss: t.rec.StopLoss, TakeProfit: t.rec.TakeProfit}
	}
	stop, tp := a.guard.Thresholds()
	return exit.Thresholds{StopLoss: stop, TakeProfit: tp}
}

// emit appends msg to the audit trail. Audit failures never change the outcome.
func (a *Agent) emit(ctx context.Context, t *tick, msg ordermsg.Message) {
	if err := a.sink.Append(ctx, msg); err != nil {
		t.log.Warnf("audit append failed for %s/%s: %v", msg.Order.Direction, msg.Order.Status, err)
	}
}

func (a *Agent) base(t *tick) ordermsg.Message {
	return ordermsg.NewBase(a.market, t.at)
}
