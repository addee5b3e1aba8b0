package reference

import (
	"context"
	"fmt"
	"time"

	"logiref/internal/core/numerator"
)

// usedSetLoader builds the used-set of one scheme/group from the source column
// and the reservation ledger.
type usedSetLoader struct {
	repo Repository
}

// load pages through the source until a short page arrives. Any read error aborts
// the whole load; no partial set is returned.
func (l usedSetLoader) load(ctx context.Context, scheme Scheme, groupKey string, f numerator.Format, now time.Time) (numerator.UsedSet, int, error) {
	pageSize := scheme.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	// The flat scheme scans every row; composite groups narrow the scan by prefix.
	var prefix string
	if scheme.Kind == KindComposite {
		prefix = groupKey
	}

	used := numerator.NewUsedSet()
	skipped := 0
	for offset := 0; ; offset += pageSize {
		page, err := l.repo.ListIdentifiers(ctx, PageQuery{
			Source: scheme.Source,
			Prefix: prefix,
			Offset: offset,
			Limit:  pageSize,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("list identifiers at offset %d: %w", offset, err)
		}
		skipped += numerator.CollectUsed(f, page, used)
		if len(page) < pageSize {
			break
		}
	}

	reserved, err := l.repo.ListReservedNumbers(ctx, scheme.Name, groupKey, now)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	for _, n := range reserved {
		used.Add(n)
	}

	return used, skipped, nil
}
