// Package numbering allocates sequential document numbers on top of a CounterStore.
//
// The service holds no counter state. Uniqueness and monotonicity come from the
// store's single atomic primitive; the service validates input, bounds each call
// with a timeout, retries lost optimistic races and maps failures to AppErrors.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docnum/internal/core/apperror"
	"docnum/internal/core/numerator"
	"docnum/pkg/logger"
)

var tracer = otel.Tracer("docnum/numbering")

// Ensure compile-time interface compliance.
var _ numerator.Allocator = (*Service)(nil)

// Service provides document numbering operations.
type Service struct {
	store numerator.CounterStore
	opts  Options
}

// NewService creates a numbering service over store.
// Zero-valued options fall back to DefaultOptions.
func NewService(store numerator.CounterStore, opts Options) *Service {
	return &Service{
		store: store,
		opts:  opts.withDefaults(),
	}
}

// Allocate reserves and returns the next number for t.
// The number is consumed once the store commits, even if the caller then fails.
func (s *Service) Allocate(ctx context.Context, t numerator.DocumentType) (int64, error) {
	ctx, span := startSpan(ctx, "numbering.Allocate", t)
	defer span.End()

	if err := validateType(t); err != nil {
		return 0, recordError(span, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	num, err := s.retry(ctx, "allocate", t, func(ctx context.Context) (int64, error) {
		return s.store.IncrementAndGet(ctx, t, 1)
	})
	if err != nil {
		return 0, recordError(span, s.fail(ctx, "allocate", t, err))
	}

	span.SetAttributes(attribute.Int64("numbering.number", num))
	logger.Debug(ctx, "allocated document number",
		"document_type", t,
		"number", num,
	)
	return num, nil
}

// AllocateN reserves n contiguous numbers for t in one atomic step.
// The block is returned in ascending order.
func (s *Service) AllocateN(ctx context.Context, t numerator.DocumentType, n int) ([]int64, error) {
	ctx, span := startSpan(ctx, "numbering.AllocateN", t)
	defer span.End()
	span.SetAttributes(attribute.Int("numbering.count", n))

	if err := validateType(t); err != nil {
		return nil, recordError(span, err)
	}
	if n < 1 || n > s.opts.MaxBatch {
		err := apperror.NewValidation(fmt.Sprintf("count must be between 1 and %d", s.opts.MaxBatch)).
			WithDetail("count", n)
		return nil, recordError(span, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	end, err := s.retry(ctx, "allocate batch", t, func(ctx context.Context) (int64, error) {
		return s.store.IncrementAndGet(ctx, t, int64(n))
	})
	if err != nil {
		return nil, recordError(span, s.fail(ctx, "allocate batch", t, err))
	}

	nums := make([]int64, n)
	first := end - int64(n) + 1
	for i := range nums {
		nums[i] = first + int64(i)
	}

	logger.Debug(ctx, "allocated document number block",
		"document_type", t,
		"first", first,
		"last", end,
	)
	return nums, nil
}

// Next allocates a number and formats it with t's FormatConfig.
func (s *Service) Next(ctx context.Context, t numerator.DocumentType) (numerator.Number, error) {
	num, err := s.Allocate(ctx, t)
	if err != nil {
		return numerator.Number{}, err
	}
	return numerator.Number{
		DocumentType: t,
		Value:        num,
		Formatted:    numerator.FormatNumber(s.Format(t), s.opts.Clock(), num),
	}, nil
}

// Current returns the last issued number for t, or 0 if none was issued.
// The value is informational and may be stale by the time it is returned.
func (s *Service) Current(ctx context.Context, t numerator.DocumentType) (int64, error) {
	ctx, span := startSpan(ctx, "numbering.Current", t)
	defer span.End()

	if err := validateType(t); err != nil {
		return 0, recordError(span, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	num, err := s.store.Current(ctx, t)
	if err != nil {
		return 0, recordError(span, s.fail(ctx, "current", t, err))
	}
	return num, nil
}

// Rebase raises t's counter to at least floor and returns the resulting value.
// It never lowers a counter, so numbers already issued are never reissued.
func (s *Service) Rebase(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error) {
	ctx, span := startSpan(ctx, "numbering.Rebase", t)
	defer span.End()
	span.SetAttributes(attribute.Int64("numbering.floor", floor))

	if err := validateType(t); err != nil {
		return 0, recordError(span, err)
	}
	if floor < 0 {
		err := apperror.NewValidation("floor must not be negative").WithDetail("floor", floor)
		return 0, recordError(span, err)
	}
	if limit := s.maxFloor(); floor > limit {
		err := apperror.NewValidation(fmt.Sprintf("floor must not exceed %d", limit)).WithDetail("floor", floor)
		return 0, recordError(span, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	num, err := s.retry(ctx, "rebase", t, func(ctx context.Context) (int64, error) {
		return s.store.Raise(ctx, t, floor)
	})
	if err != nil {
		return 0, recordError(span, s.fail(ctx, "rebase", t, err))
	}

	logger.Info(ctx, "rebased document sequence",
		"document_type", t,
		"floor", floor,
		"last_issued", num,
	)
	return num, nil
}

// Counters lists all persisted counters ordered by document type.
func (s *Service) Counters(ctx context.Context) ([]numerator.SequenceCounter, error) {
	ctx, span := tracer.Start(ctx, "numbering.Counters")
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.store.List(ctx)
	if err != nil {
		return nil, recordError(span, s.fail(ctx, "list", "", err))
	}
	return items, nil
}

// Ping checks that the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return toAppError(err)
	}
	return nil
}

// maxFloor leaves room for one full batch above the highest accepted floor.
func (s *Service) maxFloor() int64 {
	return math.MaxInt64 - int64(s.opts.MaxBatch)
}

// Format returns the effective display format for t.
func (s *Service) Format(t numerator.DocumentType) numerator.FormatConfig {
	if cfg, ok := s.opts.Formats[t]; ok {
		return cfg
	}
	return numerator.DefaultFormat(t)
}

// Now returns the formatting clock's current time.
func (s *Service) Now() time.Time {
	return s.opts.Clock()
}

// retry runs fn until it succeeds, fails with anything but ErrConflict,
// or MaxAttempts calls have been made.
func (s *Service) retry(ctx context.Context, op string, t numerator.DocumentType, fn func(context.Context) (int64, error)) (int64, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff
	b.MaxElapsedTime = 0

	var (
		result  int64
		attempt int
	)
	operation := func() error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		if errors.Is(err, numerator.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn(ctx, "sequence update conflict, retrying",
			"op", op,
			"document_type", t,
			"attempt", attempt,
			"backoff", next,
			"error", err,
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return 0, err
	}
	return result, nil
}

// withTimeout applies the default timeout unless ctx already has a deadline.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// fail logs a failed store operation and converts it to an AppError.
func (s *Service) fail(ctx context.Context, op string, t numerator.DocumentType, err error) error {
	appErr := toAppError(err)
	logger.Error(ctx, "numbering operation failed",
		"op", op,
		"document_type", t,
		"code", appErr.Code,
		"error", err,
	)
	return appErr
}

// toAppError maps store and context errors onto the AppError taxonomy.
func toAppError(err error) *apperror.AppError {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, numerator.ErrConflict):
		return apperror.NewConflict("sequence is under contention, retry later").WithCause(err)
	case errors.Is(err, numerator.ErrStoreUnavailable):
		return apperror.NewStoreUnavailable(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.NewStoreUnavailable(fmt.Errorf("%w: %w", numerator.ErrStoreUnavailable, err))
	case errors.Is(err, numerator.ErrInvalidDocumentType):
		return apperror.NewInvalidDocumentType("", err)
	default:
		return apperror.NewInternal(err)
	}
}

func validateType(t numerator.DocumentType) error {
	if !t.IsValid() {
		return apperror.NewInvalidDocumentType(string(t),
			fmt.Errorf("%w: %q", numerator.ErrInvalidDocumentType, string(t)))
	}
	return nil
}

func startSpan(ctx context.Context, name string, t numerator.DocumentType) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("numbering.document_type", string(t)),
		))
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
