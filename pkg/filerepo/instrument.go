package filerepo

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/filerepo/pkg/future"
)

const tracerName = "github.com/fluxorio/filerepo"

// Observer is told about every completed repository operation.
type Observer interface {
	ObserveOperation(repo, op string, latency time.Duration, err error)
}

// instrument wraps one operation in a span and reports it to the observer.
// The returned future completes only after both have been notified.
func instrument[M Model, T any](r *Repo[M], op string, start func() *future.Future[T]) *future.Future[T] {
	_, span := r.tracer.Start(context.Background(), "filerepo."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("filerepo.name", r.name),
			attribute.String("filerepo.instance", r.id.String()),
			attribute.Int("filerepo.record_size", r.cfg.RecordSize),
		))
	began := time.Now()

	p := future.NewPromise[T](r.loop)
	start().OnComplete(func(v T, err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if r.observer != nil {
			r.observer.ObserveOperation(r.name, op, time.Since(began), err)
		}
		p.Complete(v, err)
	})
	return p.Future
}
