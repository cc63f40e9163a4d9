package costing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/tx"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
)

var tracer = otel.Tracer("lotcost/costing")

// Engine estimates costs, consumes lots and keeps material aggregates in
// sync with the lot store.
//
// Every mutation of a material or its lots runs in one transaction that holds
// the material lock, so concurrent calls for the same material serialize while
// different materials proceed in parallel.
type Engine struct {
	txManager tx.Manager
	materials material.Repository
	lots      lots.Repository
	journal   Journal
	recorder  Recorder
	retry     tx.RetryPolicy
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal sets the movement journal.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		if j != nil {
			e.journal = j
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRetryPolicy overrides the conflict retry policy.
func WithRetryPolicy(p tx.RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over explicit storage handles.
func NewEngine(txManager tx.Manager, materials material.Repository, lotRepo lots.Repository, opts ...Option) *Engine {
	e := &Engine{
		txManager: txManager,
		materials: materials,
		lots:      lotRepo,
		journal:   nopJournal{},
		recorder:  nopRecorder{},
		retry:     tx.DefaultRetryPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TxManager exposes the transaction manager so callers can group several
// engine calls into one unit of work.
func (e *Engine) TxManager() tx.Manager { return e.txManager }

// RetryPolicy returns the conflict retry policy in effect.
func (e *Engine) RetryPolicy() tx.RetryPolicy { return e.retry }

// withRetry runs fn and retries it on conflicts, unless ctx already carries a
// caller's transaction: a conflict there poisons the whole outer unit, so the
// outer caller must retry instead.
func (e *Engine) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if e.txManager.InTransaction(ctx) {
		return fn(ctx)
	}
	return tx.Retry(ctx, e.retry, func(int, error) { e.recorder.IncRetry(operation) }, fn)
}

func validateRequest(qty types.Quantity, method Method) error {
	if !qty.IsPositive() {
		return apperror.NewInvalidQuantity(qty.String())
	}
	if !method.IsValid() {
		return errInvalidMethod(method)
	}
	return nil
}

func (e *Engine) startSpan(ctx context.Context, name string, materialID id.ID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("material.id", materialID.String()))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// outcomeOf returns a low-cardinality label for metrics.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
