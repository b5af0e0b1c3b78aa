package trigger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/trigger/action"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

// Retryer runs a function repeatedly until it succeeds or fails with a
// non-retryable error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
	Stop()
}

// EvLoop receives events and triggers matching actions.
// Actions are executed asynchronously in go-routines and are retried by the
// Retryer.
type EvLoop struct {
	ch     chan *Event
	logger *zap.Logger
	rules  []*Rule
	job    string

	loopWg        sync.WaitGroup
	actionWg      sync.WaitGroup
	actionDeferFn func()
	retryer       Retryer
}

// WithActionRoutineDeferFunc sets a function to be run when an go-routine that
// executes an action returns.
// It can be used to set a panic handler.
func WithActionRoutineDeferFunc(fn func()) func(*EvLoop) {
	return func(e *EvLoop) {
		e.actionDeferFn = fn
	}
}

// WithJobToTrigger sets the job name that is passed to action templates.
func WithJobToTrigger(job string) func(*EvLoop) {
	return func(e *EvLoop) {
		e.job = job
	}
}

func NewEventLoop(rules []*Rule, retryer Retryer, opts ...func(*EvLoop)) *EvLoop {
	evl := EvLoop{
		ch:      make(chan *Event, DefEventChannelBufferSize),
		rules:   rules,
		retryer: retryer,
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	evl.loopWg.Add(1)

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *Event {
	return e.ch
}

// Start processes events until the event channel is closed.
// It must be called exactly once, Stop blocks until it returned.
func (e *EvLoop) Start() {
	defer e.loopWg.Done()

	ctx := context.Background()
	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for ev := range e.ch {
		e.process(ctx, ev)
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

func (e *EvLoop) process(ctx context.Context, ev *Event) {
	logger := e.logger.With(ev.LogFields...)

	logger.Debug("event received", logfields.Event("event_received"))

	for _, rule := range e.rules {
		logger := logger.With(zap.String("rule_name", rule.name))

		match, err := rule.Match(ctx, ev)
		if err != nil {
			logger.Error(
				"matching rule failed",
				logfields.Event("rule_matching_failed"),
				zap.Error(err),
			)
			continue
		}

		logger.Debug(
			"evaluated result of matching event with rule",
			logfields.Event("rule_match_result_evaluated"),
			zap.Stringer("match_result", match),
		)

		switch match {
		case Match:
		case EventSourceMismatch, RuleMismatch:
			continue
		default:
			logger.Error(
				"match returned invalid result",
				logfields.Event("rule_match_invalid_result"),
				zap.Stringer("match_result", match),
			)
			continue
		}

		actions, err := rule.TemplateActions(ev, e.job)
		if err != nil {
			logger.Error(
				"templating action definition failed, rule is skipped",
				logfields.Event("rule_action_templating_failed"),
				zap.Error(err),
			)
			continue
		}

		for _, runner := range actions {
			e.scheduleAction(ctx, ev, runner)
		}
	}
}

func (e *EvLoop) scheduleAction(ctx context.Context, event *Event, runner action.Runner) {
	e.actionWg.Add(1)

	go func() {
		if e.actionDeferFn != nil {
			defer e.actionDeferFn()
		}

		defer e.actionWg.Done()

		logF := append(append([]zap.Field{}, event.LogFields...), runner.LogFields()...)

		if err := e.retryer.Run(ctx, runner.Run, logF); err != nil {
			e.logger.Error(
				"action failed",
				append(logF, logfields.Event("action_failed"), zap.Error(err))...,
			)

			return
		}

		e.logger.Info(
			"action executed successfully",
			append(logF, logfields.Event("action_executed_successfully"))...,
		)
	}()
}

// Stop stops the event loop, it waits until all scheduled go-routines
// terminated.
// The event channel (Evloop.C()) will be closed.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.retryer.Stop()
	e.loopWg.Wait()

	e.logger.Debug(
		"waiting for scheduled actions to terminate",
		logfields.Event("eventloop_terminating"),
	)
	e.actionWg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
