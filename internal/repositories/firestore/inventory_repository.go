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

	"github.com/furever-shop/api/internal/domain"
	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
	"github.com/furever-shop/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name              string    `firestore:"name"`
	Price             int64     `firestore:"price"`
	CountInStock      int       `firestore:"countInStock"`
	LowStockThreshold int       `firestore:"lowStockThreshold,omitempty"`
	ImageRef          string    `firestore:"image,omitempty"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// InventoryRepository applies delivery stock adjustments in one Firestore
// transaction: order guard read, product reads, stock writes, guard write.
type InventoryRepository struct {
	provider          *pfirestore.Provider
	orders            *pfirestore.BaseRepository[orderDocument]
	products          *pfirestore.BaseRepository[productDocument]
	clock             func() time.Time
	fallbackThreshold int
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider:          provider,
		orders:            pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		products:          pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		clock:             func() time.Time { return time.Now().UTC() },
		fallbackThreshold: domain.DefaultLowStockThreshold,
	}, nil
}

// WithClock overrides the timestamp source.
func (r *InventoryRepository) WithClock(clock func() time.Time) *InventoryRepository {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// WithDefaultLowStockThreshold overrides the threshold used for products that
// do not carry their own.
func (r *InventoryRepository) WithDefaultLowStockThreshold(threshold int) *InventoryRepository {
	if threshold > 0 {
		r.fallbackThreshold = threshold
	}
	return r
}

// ApplyDeliveryAdjustment decrements stock for every line item of the order,
// flooring at zero, and sets the order's stockApplied guard in the same
// transaction. A second call for the same order is a no-op.
func (r *InventoryRepository) ApplyDeliveryAdjustment(ctx context.Context, orderID string) (repositories.DeliveryAdjustment, error) {
	if r == nil || r.provider == nil {
		return repositories.DeliveryAdjustment{}, errors.New("inventory repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return repositories.DeliveryAdjustment{}, errors.New("order id is required")
	}

	var result repositories.DeliveryAdjustment

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.DeliveryAdjustment{}

		orderRef, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var order orderDocument
		if err := orderSnap.DataTo(&order); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		if order.StockApplied {
			result.AlreadyApplied = true
			return nil
		}

		// All transaction reads must happen before the first write, so the
		// product snapshots are collected up front.
		type productRead struct {
			item orderItemDocument
			ref  *firestore.DocumentRef
			doc  productDocument
			ok   bool
		}
		reads := make([]productRead, 0, len(order.Items))
		for _, item := range order.Items {
			productID := strings.TrimSpace(item.ProductRef)
			if productID == "" {
				reads = append(reads, productRead{item: item})
				continue
			}
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if status.Code(err) == codes.NotFound {
				reads = append(reads, productRead{item: item, ref: ref})
				continue
			}
			if err != nil {
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			reads = append(reads, productRead{item: item, ref: ref, doc: doc, ok: true})
		}

		now := r.clock()
		lines := make([]repositories.StockAdjustment, 0, len(reads))
		for _, read := range reads {
			if !read.ok {
				lines = append(lines, repositories.StockAdjustment{
					ProductID: strings.TrimSpace(read.item.ProductRef),
					Name:      read.item.Name,
					Requested: read.item.Quantity,
					Missing:   true,
				})
				continue
			}

			remaining := read.doc.CountInStock - read.item.Quantity
			if remaining < 0 {
				remaining = 0
			}
			if err := tx.Update(read.ref, []firestore.Update{
				{Path: "countInStock", Value: remaining},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}

			threshold := read.doc.LowStockThreshold
			if threshold <= 0 {
				threshold = r.fallbackThreshold
			}
			lines = append(lines, repositories.StockAdjustment{
				ProductID: strings.TrimSpace(read.item.ProductRef),
				Name:      read.doc.Name,
				Requested: read.item.Quantity,
				Remaining: remaining,
				Threshold: threshold,
			})
		}

		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "stockApplied", Value: true},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		result.Lines = lines
		return nil
	})
	if err != nil {
		return repositories.DeliveryAdjustment{}, pfirestore.WrapError("inventory.apply_delivery", err)
	}
	return result, nil
}
