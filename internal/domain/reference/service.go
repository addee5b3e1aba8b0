package reference

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"logiref/internal/core/apperror"
	appctx "logiref/internal/core/context"
	"logiref/internal/core/numerator"
	"logiref/internal/core/tx"
	"logiref/pkg/logger"
)

const instrumentationName = "logiref/internal/domain/reference"

// Config tunes the allocation cycle.
type Config struct {
	// MaxRetries is how many times a conflicting cycle is re-run before giving up.
	MaxRetries int
	// ReservationTTL is how long a reserved identifier counts as used.
	ReservationTTL time.Duration
	// RetryBackoff is the base delay between attempts; jitter of the same size is added.
	RetryBackoff time.Duration
	// MaxCount caps a single request. Zero disables the cap.
	MaxCount int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		ReservationTTL: 24 * time.Hour,
		RetryBackoff:   20 * time.Millisecond,
		MaxCount:       1000,
	}
}

// ServiceConfig wires the service dependencies.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.SerializableManager
	Schemes   []Scheme // DefaultSchemes() when empty
	Config    Config
	Logger    *logger.Logger
	Clock     func() time.Time
}

// Service allocates and reserves reference identifiers.
type Service struct {
	repo    Repository
	txm     tx.SerializableManager
	loader  usedSetLoader
	schemes map[string]Scheme
	cfg     Config
	now     func() time.Time
	locks   *keyedMutex
	log     *logger.Logger

	tracer    trace.Tracer
	allocated metric.Int64Counter
	conflicts metric.Int64Counter
}

// NewService validates the scheme set and builds a Service.
func NewService(c ServiceConfig) (*Service, error) {
	if c.Repo == nil {
		return nil, errors.New("reference: repository is required")
	}
	if c.TxManager == nil {
		return nil, errors.New("reference: transaction manager is required")
	}

	schemes := c.Schemes
	if len(schemes) == 0 {
		schemes = DefaultSchemes()
	}
	byName := make(map[string]Scheme, len(schemes))
	for _, sc := range schemes {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[sc.Name]; dup {
			return nil, fmt.Errorf("reference: duplicate scheme %q", sc.Name)
		}
		byName[sc.Name] = sc
	}

	cfg := c.Config
	def := DefaultConfig()
	if cfg == (Config{}) {
		cfg = def
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = def.ReservationTTL
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}

	log := c.Logger
	if log == nil {
		log = logger.Default()
	}
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}

	meter := otel.Meter(instrumentationName)
	allocated, err := meter.Int64Counter("logiref.references.allocated",
		metric.WithDescription("Reference identifiers reserved"),
		metric.WithUnit("{reference}"))
	if err != nil {
		return nil, fmt.Errorf("create allocated counter: %w", err)
	}
	conflicts, err := meter.Int64Counter("logiref.references.conflicts",
		metric.WithDescription("Allocation cycles lost to a concurrent transaction"),
		metric.WithUnit("{conflict}"))
	if err != nil {
		return nil, fmt.Errorf("create conflicts counter: %w", err)
	}

	return &Service{
		repo:      c.Repo,
		txm:       c.TxManager,
		loader:    usedSetLoader{repo: c.Repo},
		schemes:   byName,
		cfg:       cfg,
		now:       clock,
		locks:     newKeyedMutex(),
		log:       log.WithComponent("reference"),
		tracer:    otel.Tracer(instrumentationName),
		allocated: allocated,
		conflicts: conflicts,
	}, nil
}

// Scheme returns the scheme registered under name.
func (s *Service) Scheme(name string) (Scheme, bool) {
	sc, ok := s.schemes[name]
	return sc, ok
}

// Schemes lists registered schemes ordered by name.
func (s *Service) Schemes() []Scheme {
	out := make([]Scheme, 0, len(s.schemes))
	for _, sc := range s.schemes {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// prepare validates req without touching the store.
func (s *Service) prepare(req Request) (Scheme, string, numerator.Format, error) {
	scheme, ok := s.schemes[req.Scheme]
	if !ok {
		return Scheme{}, "", numerator.Format{}, apperror.NewNotFound("scheme", req.Scheme)
	}
	if req.Count <= 0 {
		return Scheme{}, "", numerator.Format{}, apperror.NewValidation(numerator.ErrInvalidCount.Error()).
			WithDetail("count", req.Count)
	}
	if s.cfg.MaxCount > 0 && req.Count > s.cfg.MaxCount {
		return Scheme{}, "", numerator.Format{}, apperror.NewValidation(
			fmt.Sprintf("count must not exceed %d", s.cfg.MaxCount)).
			WithDetail("count", req.Count)
	}
	if scheme.Kind == KindComposite {
		if strings.TrimSpace(req.Client) == "" || strings.TrimSpace(req.Species) == "" {
			return Scheme{}, "", numerator.Format{}, apperror.NewValidation("client and species are required")
		}
	}
	groupKey, f := scheme.Group(req.Client, req.Species)
	return scheme, groupKey, f, nil
}

// Allocate reserves req.Count identifiers. The read of existing identifiers, the
// computation and the reservation insert run in one serializable transaction;
// a cycle that loses a race is re-run from scratch up to MaxRetries times.
func (s *Service) Allocate(ctx context.Context, req Request) (*Allocation, error) {
	scheme, groupKey, f, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("reference.scheme", scheme.Name),
		attribute.String("reference.group", groupKey),
	}
	ctx, span := s.tracer.Start(ctx, "reference.Allocate",
		trace.WithAttributes(append(attrs, attribute.Int("reference.count", req.Count))...))
	defer span.End()

	unlock, err := s.locks.Lock(ctx, scheme.Name+"/"+groupKey)
	if err != nil {
		return nil, apperror.NewTimeout(err)
	}
	defer unlock()

	log := s.log.WithContext(ctx).WithGroup(scheme.Name, groupKey)
	attempts := s.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		alloc, err := s.runCycle(ctx, scheme, groupKey, f, req.Count)
		if err == nil {
			alloc.Attempts = attempt
			s.allocated.Add(ctx, int64(len(alloc.References)), metric.WithAttributes(attrs...))
			span.SetAttributes(attribute.Int("reference.attempts", attempt))
			log.Infow("references allocated",
				"count", len(alloc.References),
				"first", alloc.References[0],
				"attempts", attempt,
				"skipped_rows", alloc.Skipped,
			)
			return alloc, nil
		}
		if !errors.Is(err, ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation failed")
			log.Errorw("allocation failed", "error", err)
			return nil, err
		}

		lastErr = err
		s.conflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
		if attempt == attempts {
			break
		}
		log.Warnw("allocation conflict, retrying", "attempt", attempt, "error", err)
		if err := s.backoff(ctx, attempt); err != nil {
			return nil, apperror.NewTimeout(err)
		}
	}

	span.SetStatus(codes.Error, "conflict retries exhausted")
	return nil, apperror.NewConflict("could not reserve references, concurrent allocations kept conflicting").
		WithDetail("attempts", attempts).
		WithCause(lastErr)
}

// runCycle performs one read-compute-reserve transaction. Conflicts are returned
// unwrapped so the caller can retry; everything else is mapped to an AppError.
func (s *Service) runCycle(ctx context.Context, scheme Scheme, groupKey string, f numerator.Format, count int) (*Allocation, error) {
	var (
		alloc      *Allocation
		readFailed bool
	)
	err := s.txm.RunSerializable(ctx, func(ctx context.Context) error {
		now := s.now()
		used, skipped, err := s.loader.load(ctx, scheme, groupKey, f, now)
		if err != nil {
			readFailed = true
			return err
		}

		refs, nums, err := numerator.AllocateFormatted(f, used, count)
		if err != nil {
			return err
		}

		expiresAt := now.Add(s.cfg.ReservationTTL)
		reservedBy := appctx.GetUserID(ctx)
		reservations := make([]Reservation, len(refs))
		for i := range refs {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate reservation id: %w", err)
			}
			reservations[i] = Reservation{
				ID:         id,
				Scheme:     scheme.Name,
				GroupKey:   groupKey,
				Seq:        nums[i],
				Reference:  refs[i],
				ReservedBy: reservedBy,
				ReservedAt: now,
				ExpiresAt:  expiresAt,
			}
		}
		if err := s.repo.Reserve(ctx, reservations); err != nil {
			return err
		}

		alloc = &Allocation{
			Scheme:        scheme.Name,
			GroupKey:      groupKey,
			References:    refs,
			Numbers:       nums,
			Skipped:       skipped,
			ReservedUntil: expiresAt,
		}
		return nil
	})

	switch {
	case err == nil:
		return alloc, nil
	case errors.Is(err, ErrConflict):
		return nil, err
	case ctx.Err() != nil:
		return nil, apperror.NewTimeout(err)
	case readFailed:
		return nil, apperror.NewStoreRead(err)
	default:
		return nil, apperror.NewStoreWrite(err)
	}
}

func (s *Service) backoff(ctx context.Context, attempt int) error {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return ctx.Err()
	}
	delay := time.Duration(attempt)*base + time.Duration(rand.Int64N(int64(base)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Preview computes the identifiers Allocate would hand out right now without
// reserving them. The answer is advisory: a concurrent Allocate may take them first.
func (s *Service) Preview(ctx context.Context, req Request) (*Allocation, error) {
	scheme, groupKey, f, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "reference.Preview", trace.WithAttributes(
		attribute.String("reference.scheme", scheme.Name),
		attribute.String("reference.group", groupKey),
	))
	defer span.End()

	used, skipped, err := s.loader.load(ctx, scheme, groupKey, f, s.now())
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, apperror.NewTimeout(err)
		}
		return nil, apperror.NewStoreRead(err)
	}
	refs, nums, err := numerator.AllocateFormatted(f, used, req.Count)
	if err != nil {
		return nil, apperror.NewValidation(err.Error())
	}
	return &Allocation{
		Scheme:     scheme.Name,
		GroupKey:   groupKey,
		References: refs,
		Numbers:    nums,
		Skipped:    skipped,
	}, nil
}

// PurgeExpired removes reservations whose TTL has elapsed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, apperror.NewStoreWrite(err)
	}
	if n > 0 {
		s.log.WithContext(ctx).Infow("expired reservations purged", "count", n)
	}
	return n, nil
}
