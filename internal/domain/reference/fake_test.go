package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memRepo is an in-memory Repository. Rows are keyed by "table.column".
type memRepo struct {
	mu           sync.Mutex
	rows         map[string][]*string
	reservations map[string]Reservation // by reference

	listErr     error
	reservedErr error
	reserveErrs []error // consumed one per Reserve call

	listCalls    int
	reserveCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:         make(map[string][]*string),
		reservations: make(map[string]Reservation),
	}
}

func (r *memRepo) seed(src Source, values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := src.Table + "." + src.Column
	for _, v := range values {
		v := v
		r.rows[key] = append(r.rows[key], &v)
	}
}

func (r *memRepo) seedNull(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := src.Table + "." + src.Column
	r.rows[key] = append(r.rows[key], nil)
}

func (r *memRepo) ListIdentifiers(_ context.Context, q PageQuery) ([]*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}

	var matched []*string
	for _, v := range r.rows[q.Source.Table+"."+q.Source.Column] {
		if q.Prefix != "" && (v == nil || !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(*v)), strings.ToUpper(q.Prefix))) {
			continue
		}
		matched = append(matched, v)
	}
	// NULLs sort last, as in postgres ascending order.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i] == nil || matched[j] == nil {
			return matched[j] == nil && matched[i] != nil
		}
		return *matched[i] < *matched[j]
	})

	if q.Offset >= len(matched) {
		return nil, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], nil
}

func (r *memRepo) ListReservedNumbers(_ context.Context, scheme, groupKey string, now time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reservedErr != nil {
		return nil, r.reservedErr
	}
	var out []int64
	for _, res := range r.reservations {
		if res.Scheme == scheme && res.GroupKey == groupKey && res.ExpiresAt.After(now) {
			out = append(out, res.Seq)
		}
	}
	return out, nil
}

func (r *memRepo) Reserve(_ context.Context, rs []Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserveCalls++
	if len(r.reserveErrs) > 0 {
		err := r.reserveErrs[0]
		r.reserveErrs = r.reserveErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, res := range rs {
		if cur, ok := r.reservations[res.Reference]; ok && cur.ExpiresAt.After(res.ReservedAt) {
			return fmt.Errorf("reference %s already reserved: %w", res.Reference, ErrConflict)
		}
	}
	for _, res := range rs {
		r.reservations[res.Reference] = res
	}
	return nil
}

func (r *memRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for ref, res := range r.reservations {
		if !res.ExpiresAt.After(now) {
			delete(r.reservations, ref)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) reserved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.reservations))
	for ref := range r.reservations {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

// serialTx runs every transaction under one lock, which is the strongest
// serializable schedule there is.
type serialTx struct {
	mu    sync.Mutex
	calls int
}

func (t *serialTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.RunSerializable(ctx, fn)
}

func (t *serialTx) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return fn(ctx)
}

func (t *serialTx) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
