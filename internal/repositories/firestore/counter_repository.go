package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out sequence numbers via Firestore transactions.
// Order numbers are derived from these counters.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection, nil, nil),
	}, nil
}

// Next atomically increments the counter and returns the new value. A missing
// counter starts from the step value.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter id is required")
	}
	if step <= 0 {
		step = 1
	}

	now := time.Now().UTC()
	var nextValue int64

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			doc := counterDocument{CurrentValue: step, Step: step, UpdatedAt: now}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			nextValue = doc.CurrentValue
			return nil
		}
		if err != nil {
			return err
		}

		var doc counterDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("decode counter %s: %w", id, err)
		}

		doc.CurrentValue += step
		doc.Step = step
		doc.UpdatedAt = now

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		nextValue = doc.CurrentValue
		return nil
	})
	if err != nil {
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return nextValue, nil
}
