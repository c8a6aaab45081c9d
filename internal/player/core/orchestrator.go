// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package core runs playback sessions. Each Orchestrator owns one session:
// a FIFO action queue processed by a single goroutine, so at most one
// transition executes at a time and PlayerState mutation is serialized by
// construction. Side effects are confined to adapter invocations, manifest
// loading, journal appends and notifications.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/metrics"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
)

const (
	adapterDisposeTimeout = 5 * time.Second
	journalAppendTimeout  = 2 * time.Second
)

// ManifestLoader fetches and parses a manifest for dash/hls sources. The
// manifest package's Loader satisfies it; tests substitute fixtures.
type ManifestLoader interface {
	Load(ctx context.Context, source model.SourceType, rawURL string) (*model.Manifest, error)
}

// Config assembles the collaborators one session engine needs.
type Config struct {
	// SessionID is minted when empty.
	SessionID string
	Registry  *adapter.Registry
	Manifests ManifestLoader
	// Journal is optional; nil disables journaling.
	Journal store.Store
	// JournalBackend labels journal failure metrics.
	JournalBackend string
	Constraints    model.Constraints
	// OnChange, when set, runs after every published notification. It
	// must not block.
	OnChange func()
}

type queryResult struct {
	ranges []model.TimeRange
	err    error
}

// queued is one slot of the session queue: either an action or an adapter
// query, never both.
type queued struct {
	act    lifecycle.Action
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64 // adapter generation, adapter events only

	query func(ctx context.Context, ad adapter.Adapter) queryResult
	reply chan queryResult
}

// Orchestrator drives one playback session.
type Orchestrator struct {
	id        string
	registry  *adapter.Registry
	manifests ManifestLoader
	journal   store.Store
	backend   string
	onChange  func()
	logger    zerolog.Logger

	mu        sync.Mutex
	queue     []queued
	state     model.PlayerState
	seq       uint64
	updated   time.Time
	accepting bool
	inflight  context.CancelFunc
	adapter   adapter.Adapter
	gen       uint64
	srcType   model.SourceType
	srcURL    string
	activeID  string

	// sc is owned by the queue goroutine; it is never read outside it.
	sc model.SessionContext

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}

	wake      chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	done      chan struct{}
	gaugeOnce sync.Once
}

// New starts a session engine in Idle. The caller must eventually call
// Dispose (directly or through the manager) to release it.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, errors.New("core: adapter registry is required")
	}
	if cfg.Manifests == nil {
		return nil, errors.New("core: manifest loader is required")
	}
	id := cfg.SessionID
	if id == "" {
		id = model.NewSessionID()
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		id:        id,
		registry:  cfg.Registry,
		manifests: cfg.Manifests,
		journal:   cfg.Journal,
		backend:   cfg.JournalBackend,
		onChange:  cfg.OnChange,
		logger:    log.WithComponent("player").With().Str(log.FieldSessionID, id).Logger(),
		state:     model.Idle(),
		updated:   time.Now().UTC(),
		accepting: true,
		sc:        model.SessionContext{SessionID: id, Constraints: cfg.Constraints},
		subs:      make(map[*Subscription]struct{}),
		wake:      make(chan struct{}, 1),
		runCtx:    runCtx,
		runCancel: runCancel,
		done:      make(chan struct{}),
	}
	metrics.SessionsActive.Inc()
	go o.run()
	return o, nil
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string { return o.id }

// SessionInfo is the queryable summary of one session.
type SessionInfo struct {
	ID                   string
	SourceType           model.SourceType
	SourceURL            string
	ActiveRepresentation string
	State                model.PlayerState
	Seq                  uint64
	UpdatedAt            time.Time
}

// Info returns the current session summary.
func (o *Orchestrator) Info() SessionInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return SessionInfo{
		ID:                   o.id,
		SourceType:           o.srcType,
		SourceURL:            o.srcURL,
		ActiveRepresentation: o.activeID,
		State:                o.state,
		Seq:                  o.seq,
		UpdatedAt:            o.updated,
	}
}

// State returns the current snapshot and the seq of the last stream element.
func (o *Orchestrator) State() (model.PlayerState, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.seq
}

// Dispatch enqueues act and returns immediately; outcomes are delivered via
// the change stream. Dispatching load or dispose cancels the in-flight
// operation's context at enqueue time. Dispatch after Dispose is a caller
// contract violation: debug builds panic, production gets ErrDisposed.
func (o *Orchestrator) Dispatch(act lifecycle.Action) error {
	o.mu.Lock()
	if !o.accepting {
		o.mu.Unlock()
		return dispatchAfterDispose(o.id)
	}
	if act.Kind == lifecycle.ActDispose {
		o.beginDisposeLocked()
		o.mu.Unlock()
		return nil
	}
	if act.Kind == lifecycle.ActLoad {
		o.cancelInFlightLocked()
	}
	o.enqueueLocked(queued{act: act})
	o.mu.Unlock()
	return nil
}

// Dispose tears the session down: cancels in-flight work, drains the queue
// unexecuted, disposes the adapter, closes subscriptions. It blocks until
// teardown finished and is idempotent.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	if o.accepting {
		o.beginDisposeLocked()
	}
	o.mu.Unlock()
	<-o.done
}

// Subscribe attaches a receiver to the change stream. Subscriptions opened
// after dispose come back already finished (Done closed, no deliveries).
func (o *Orchestrator) Subscribe(opts SubscribeOptions) *Subscription {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	sub := newSubscription(buffer, o.logger)
	sub.detach = o.removeSub

	o.mu.Lock()
	state, seq := o.state, o.seq
	o.subsMu.Lock()
	if o.subs == nil {
		o.subsMu.Unlock()
		o.mu.Unlock()
		sub.finish()
		return sub
	}
	o.subs[sub] = struct{}{}
	if opts.ReplayCurrent {
		sub.replay(Notification{Seq: seq, State: state})
	}
	o.subsMu.Unlock()
	o.mu.Unlock()
	return sub
}

// BufferedRanges reports the adapter's buffered media intervals. The query
// rides the session queue so adapter access stays serialized; sessions
// without a loaded source report no ranges.
func (o *Orchestrator) BufferedRanges(ctx context.Context) ([]model.TimeRange, error) {
	reply := make(chan queryResult, 1)
	q := queued{
		query: func(opCtx context.Context, ad adapter.Adapter) queryResult {
			if ad == nil {
				return queryResult{}
			}
			ranges, err := ad.BufferedRanges(opCtx)
			return queryResult{ranges: ranges, err: err}
		},
		reply: reply,
	}

	o.mu.Lock()
	if !o.accepting {
		o.mu.Unlock()
		return nil, lifecycle.ErrDisposed
	}
	o.enqueueLocked(q)
	o.mu.Unlock()

	select {
	case res := <-reply:
		return res.ranges, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// --- queue plumbing ---

func (o *Orchestrator) enqueueLocked(q queued) {
	if q.ctx == nil {
		q.ctx, q.cancel = context.WithCancel(o.runCtx)
	}
	o.queue = append(o.queue, q)
	metrics.ActionQueueDepth.Inc()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) beginDisposeLocked() {
	o.accepting = false
	o.cancelInFlightLocked()
	o.drainQueueLocked()
	o.enqueueLocked(queued{act: lifecycle.Dispose()})
}

func (o *Orchestrator) cancelInFlightLocked() {
	if o.inflight != nil {
		o.inflight()
		o.inflight = nil
	}
}

func (o *Orchestrator) drainQueueLocked() {
	for _, q := range o.queue {
		if q.cancel != nil {
			q.cancel()
		}
		if q.reply != nil {
			q.reply <- queryResult{err: lifecycle.ErrDisposed}
		}
		metrics.ActionQueueDepth.Dec()
	}
	o.queue = o.queue[:0]
}

func (o *Orchestrator) next() queued {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			q := o.queue[0]
			copy(o.queue, o.queue[1:])
			o.queue = o.queue[:len(o.queue)-1]
			o.inflight = q.cancel
			o.mu.Unlock()
			metrics.ActionQueueDepth.Dec()
			return q
		}
		o.mu.Unlock()
		<-o.wake
	}
}

func (o *Orchestrator) finishItem(q queued) {
	o.mu.Lock()
	o.inflight = nil
	o.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
	}
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		q := o.next()
		if q.query != nil {
			q.reply <- q.query(q.ctx, o.currentAdapter())
			o.finishItem(q)
			continue
		}
		if q.act.Kind == lifecycle.ActDispose {
			o.teardown(q)
			return
		}
		o.execute(q)
		o.finishItem(q)
	}
}

// --- action execution ---

func (o *Orchestrator) execute(q queued) {
	act := q.act
	if act.Kind.IsAdapterEvent() && o.staleEvent(q) {
		o.logger.Debug().Str(log.FieldAction, act.Kind.String()).Msg("stale adapter event discarded")
		return
	}

	ctx, span := lifecycle.StartDispatchSpan(q.ctx)
	defer span.End()
	q.ctx = ctx

	from := o.state.Kind
	d := lifecycle.Decide(from, act.Kind)
	switch d.Outcome {
	case lifecycle.OutcomeIgnore:
		o.logger.Debug().
			Str(log.FieldAction, act.Kind.String()).
			Str(log.FieldFromState, string(from)).
			Msg("input ignored")
	case lifecycle.OutcomeNoop:
		o.observeNoop(act, d.Reason)
	case lifecycle.OutcomeReject:
		o.reject(q, act, lifecycle.NewRejection(from, act.Kind, d.Reason), d.Reason)
	case lifecycle.OutcomeAllow:
		o.applyAllowed(q)
	}
}

func (o *Orchestrator) applyAllowed(q queued) {
	switch q.act.Kind {
	case lifecycle.ActLoad:
		o.doLoad(q)
	case lifecycle.ActPlay:
		o.doPlay(q)
	case lifecycle.ActPause:
		o.doPause(q)
	case lifecycle.ActSeek:
		o.doSeek(q)
	case lifecycle.ActSelect:
		o.doSelect(q)
	case lifecycle.ActAdapterPlayable:
		o.doPlayable(q)
	case lifecycle.ActAdapterEnded:
		o.commit(q, q.act, lifecycle.ApplyEnded(&o.sc), nil, "")
	case lifecycle.ActAdapterFatal:
		o.failTerminal(q, &lifecycle.AdapterFatalError{Cause: q.act.Cause})
	}
}

func (o *Orchestrator) doLoad(q queued) {
	act := q.act
	o.retireAdapter()

	if !o.commit(q, act, lifecycle.BeginLoad(&o.sc, act), nil, "") {
		return
	}

	ad, err := o.newAdapter(act.SourceType)
	if err != nil {
		o.failTerminal(q, &lifecycle.LoadError{URL: act.URL, SourceType: act.SourceType, Cause: err})
		return
	}
	o.mu.Lock()
	o.adapter = ad
	o.mu.Unlock()

	if !o.commit(q, act, lifecycle.EnterSource(&o.sc), nil, "") {
		return
	}

	switch act.SourceType {
	case model.SourceDash, model.SourceHls:
		m, err := o.manifests.Load(q.ctx, act.SourceType, act.URL)
		if err != nil {
			o.failTerminal(q, err)
			return
		}
		if _, err := ad.Load(q.ctx, act.URL); err != nil {
			o.failTerminal(q, &lifecycle.LoadError{URL: act.URL, SourceType: act.SourceType, Cause: err})
			return
		}
		if q.ctx.Err() != nil {
			return
		}
		o.commit(q, act, lifecycle.FinishManifest(&o.sc, m), nil, "")
	default:
		info, err := ad.Load(q.ctx, act.URL)
		if err != nil {
			o.failTerminal(q, &lifecycle.LoadError{URL: act.URL, SourceType: act.SourceType, Cause: err})
			return
		}
		if q.ctx.Err() != nil {
			return
		}
		o.commit(q, act, lifecycle.FinishNativeReady(&o.sc, info), nil, "")
	}
}

func (o *Orchestrator) doPlay(q queued) {
	if ad := o.currentAdapter(); ad != nil {
		if err := ad.Play(q.ctx); err != nil {
			o.failTerminal(q, &lifecycle.AdapterFatalError{Cause: err})
			return
		}
	}
	o.commit(q, q.act, lifecycle.ApplyPlay(&o.sc), nil, "")
}

func (o *Orchestrator) doPause(q queued) {
	if ad := o.currentAdapter(); ad != nil {
		if err := ad.Pause(q.ctx); err != nil {
			o.failTerminal(q, &lifecycle.AdapterFatalError{Cause: err})
			return
		}
	}
	o.commit(q, q.act, lifecycle.ApplyPause(&o.sc), nil, "")
}

func (o *Orchestrator) doSeek(q queued) {
	if !o.commit(q, q.act, lifecycle.BeginSeek(q.act), nil, "") {
		return
	}
	if ad := o.currentAdapter(); ad != nil {
		if err := ad.Seek(q.ctx, q.act.TargetSeconds); err != nil {
			o.failTerminal(q, &lifecycle.AdapterFatalError{Cause: err})
			return
		}
	}
	o.commit(q, q.act, lifecycle.FinishSeek(&o.sc), nil, "")
}

func (o *Orchestrator) doSelect(q queued) {
	act := q.act
	out, err := lifecycle.ResolveSelection(&o.sc, act)
	if err != nil {
		o.reject(q, act, err, lifecycle.CodeOf(err))
		return
	}

	reason := ""
	if out.ConstraintExceeded {
		reason = "constraint_exceeded"
		o.logger.Warn().
			Str(log.FieldRepresentationID, out.Representation.ID).
			Int64(log.FieldBandwidth, out.Representation.Bandwidth).
			Msg("selection exceeds advisory constraints")
	}

	if out.NoOp {
		o.observeNoop(act, reason)
		return
	}
	if out.Switching != nil {
		if !o.commit(q, act, *out.Switching, nil, reason) {
			return
		}
	}
	if q.ctx.Err() != nil {
		return
	}
	o.commit(q, act, lifecycle.CommitSelection(&o.sc, out.Representation), nil, reason)
}

func (o *Orchestrator) doPlayable(q queued) {
	// An engine that reports playable during native preparing passes
	// through ready first. The event carries no stream info.
	if o.state.Kind == model.KindNativePreparing {
		if !o.commit(q, q.act, lifecycle.FinishNativeReady(&o.sc, model.ReadyInfo{}), nil, "") {
			return
		}
	}
	o.commit(q, q.act, lifecycle.ApplyPlay(&o.sc), nil, "")
}

// failTerminal moves the session to Error for err, unless the operation was
// superseded, in which case the outcome is discarded wholesale.
func (o *Orchestrator) failTerminal(q queued, err error) {
	if q.ctx.Err() != nil {
		o.logger.Debug().Err(err).Msg("superseded operation outcome discarded")
		return
	}
	o.commit(q, q.act, lifecycle.ApplyFailure(&o.sc, err), err, "")
	o.retireAdapter()
}

// commit publishes one applied transition: state swap, journal, metrics,
// tracing, notification. It refuses to run for a superseded operation and
// reports whether it ran.
func (o *Orchestrator) commit(q queued, act lifecycle.Action, to model.PlayerState, opErr error, reason string) bool {
	if q.ctx.Err() != nil {
		return false
	}

	from := o.state.Kind
	o.mu.Lock()
	o.state = to
	o.seq++
	seq := o.seq
	o.updated = time.Now().UTC()
	o.srcType = o.sc.SourceType
	o.srcURL = o.sc.SourceURL
	o.activeID = ""
	if o.sc.Active != nil {
		o.activeID = o.sc.Active.ID
	}
	o.mu.Unlock()

	errCode := ""
	if opErr != nil {
		errCode = lifecycle.CodeOf(opErr)
	}
	o.journalAppend(store.Entry{
		SessionID: o.id,
		Seq:       seq,
		At:        time.Now().UTC(),
		FromState: string(from),
		ToState:   string(to.Kind),
		Action:    act.Kind.String(),
		Reason:    reason,
		ErrCode:   errCode,
	})
	metrics.IncTransition(string(o.sc.SourceType), string(from), string(to.Kind))
	lifecycle.EmitTransitionObs(q.ctx, o.id, act.Kind, from, to.Kind, errCode)
	o.logger.Info().
		Str(log.FieldAction, act.Kind.String()).
		Str(log.FieldFromState, string(from)).
		Str(log.FieldToState, string(to.Kind)).
		Uint64(log.FieldSeq, seq).
		Msg("state transition")

	o.notify(Notification{Seq: seq, State: to, Err: opErr})
	return true
}

// reject notifies the caller of a refused action. State stays untouched;
// the notification carries the unchanged snapshot plus the typed error.
func (o *Orchestrator) reject(q queued, act lifecycle.Action, err error, reason string) {
	o.mu.Lock()
	state := o.state
	o.seq++
	seq := o.seq
	o.updated = time.Now().UTC()
	o.mu.Unlock()

	o.journalAppend(store.Entry{
		SessionID: o.id,
		Seq:       seq,
		At:        time.Now().UTC(),
		FromState: string(state.Kind),
		ToState:   string(state.Kind),
		Action:    act.Kind.String(),
		Reason:    reason,
		ErrCode:   lifecycle.CodeOf(err),
	})
	metrics.IncRejection(reason)
	lifecycle.EmitTransitionObs(q.ctx, o.id, act.Kind, state.Kind, state.Kind, lifecycle.CodeOf(err))
	o.logger.Warn().
		Str(log.FieldAction, act.Kind.String()).
		Str(log.FieldFromState, string(state.Kind)).
		Str(log.FieldReason, reason).
		Msg("action rejected")

	o.notify(Notification{Seq: seq, State: state, Err: err})
}

// observeNoop journals an accepted action that changes nothing. No
// notification: subscribers only hear state changes and rejections.
func (o *Orchestrator) observeNoop(act lifecycle.Action, reason string) {
	o.mu.Lock()
	kind := o.state.Kind
	o.seq++
	seq := o.seq
	o.updated = time.Now().UTC()
	o.mu.Unlock()

	o.journalAppend(store.Entry{
		SessionID: o.id,
		Seq:       seq,
		At:        time.Now().UTC(),
		FromState: string(kind),
		ToState:   string(kind),
		Action:    act.Kind.String(),
		Reason:    reason,
	})
	metrics.IncTransition(string(o.sc.SourceType), string(kind), string(kind))
	o.logger.Debug().
		Str(log.FieldAction, act.Kind.String()).
		Str(log.FieldFromState, string(kind)).
		Msg("no-op action")
}

// --- adapter plumbing ---

func (o *Orchestrator) currentAdapter() adapter.Adapter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.adapter
}

// retireAdapter advances the generation and disposes the outgoing adapter.
// The bump happens first so events the old backend emits during teardown
// are already stale.
func (o *Orchestrator) retireAdapter() {
	o.mu.Lock()
	prev := o.adapter
	o.adapter = nil
	o.gen++
	o.mu.Unlock()
	if prev == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), adapterDisposeTimeout)
	defer cancel()
	if err := prev.Dispose(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("adapter dispose failed")
	}
}

func (o *Orchestrator) newAdapter(source model.SourceType) (adapter.Adapter, error) {
	o.mu.Lock()
	gen := o.gen
	o.mu.Unlock()
	return o.registry.New(source, adapter.SinkFunc(func(ev adapter.Event) {
		o.onAdapterEvent(gen, ev)
	}))
}

func (o *Orchestrator) staleEvent(q queued) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return q.gen != o.gen
}

// onAdapterEvent folds an unsolicited backend event into the queue. Events
// from a retired adapter generation are discarded before they ever enqueue.
func (o *Orchestrator) onAdapterEvent(gen uint64, ev adapter.Event) {
	o.mu.Lock()
	if !o.accepting || gen != o.gen {
		o.mu.Unlock()
		o.logger.Debug().Str(log.FieldEvent, string(ev.Kind)).Msg("stale adapter event discarded")
		return
	}

	var act lifecycle.Action
	switch ev.Kind {
	case adapter.EventBuffering:
		act = lifecycle.AdapterBuffering()
	case adapter.EventPlayable:
		act = lifecycle.AdapterPlayable()
	case adapter.EventEnded:
		act = lifecycle.AdapterEnded()
	case adapter.EventFatal:
		act = lifecycle.AdapterFatal(ev.Err)
	default:
		o.mu.Unlock()
		o.logger.Warn().Str(log.FieldEvent, string(ev.Kind)).Msg("unknown adapter event kind")
		return
	}
	metrics.IncAdapterEvent(string(ev.Kind))
	o.enqueueLocked(queued{act: act, gen: gen})
	o.mu.Unlock()
}

// --- teardown ---

func (o *Orchestrator) teardown(q queued) {
	from := o.state.Kind
	o.runCancel()
	o.retireAdapter()

	// The run context is gone at this point, so the dispose span roots a
	// fresh trace.
	ctx, span := lifecycle.StartDispatchSpan(context.Background())
	defer span.End()

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.updated = time.Now().UTC()
	o.mu.Unlock()

	o.journalAppend(store.Entry{
		SessionID: o.id,
		Seq:       seq,
		At:        time.Now().UTC(),
		FromState: string(from),
		ToState:   string(from),
		Action:    lifecycle.ActDispose.String(),
	})
	lifecycle.EmitTransitionObs(ctx, o.id, lifecycle.ActDispose, from, from, "")
	o.logger.Info().Str(log.FieldFromState, string(from)).Msg("session disposed")

	o.closeSubs()
	o.gaugeOnce.Do(metrics.SessionsActive.Dec)
	if q.cancel != nil {
		q.cancel()
	}
}

// --- subscribers ---

func (o *Orchestrator) removeSub(sub *Subscription) {
	o.subsMu.Lock()
	if o.subs != nil {
		delete(o.subs, sub)
	}
	o.subsMu.Unlock()
}

func (o *Orchestrator) notify(n Notification) {
	o.subsMu.Lock()
	targets := make([]*Subscription, 0, len(o.subs))
	for sub := range o.subs {
		targets = append(targets, sub)
	}
	o.subsMu.Unlock()
	for _, sub := range targets {
		sub.deliver(n)
	}
	if o.onChange != nil {
		o.onChange()
	}
}

func (o *Orchestrator) closeSubs() {
	o.subsMu.Lock()
	subs := o.subs
	o.subs = nil
	o.subsMu.Unlock()
	for sub := range subs {
		sub.finish()
	}
}

// --- journal ---

func (o *Orchestrator) journalAppend(e store.Entry) {
	if o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalAppendTimeout)
	defer cancel()
	if err := o.journal.Append(ctx, e); err != nil {
		metrics.IncJournalWriteFailure(o.backend)
		o.logger.Warn().Err(err).Uint64(log.FieldSeq, e.Seq).Msg("journal append failed")
	}
}
