package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/furever-shop/api/internal/domain"
	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
	"github.com/furever-shop/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber      string              `firestore:"orderNumber"`
	CustomerRef      *string             `firestore:"customerRef,omitempty"`
	Items            []orderItemDocument `firestore:"items"`
	Status           string              `firestore:"status"`
	TotalPrice       int64               `firestore:"totalPrice"`
	ShippingAddress1 string              `firestore:"shippingAddress1"`
	ShippingAddress2 string              `firestore:"shippingAddress2,omitempty"`
	City             string              `firestore:"city,omitempty"`
	Zip              string              `firestore:"zip,omitempty"`
	Country          string              `firestore:"country,omitempty"`
	Phone            string              `firestore:"phone,omitempty"`
	PaymentMethod    string              `firestore:"paymentMethod,omitempty"`
	StockApplied     bool                `firestore:"stockApplied"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	UpdatedAt        time.Time           `firestore:"updatedAt"`
	DeliveredAt      *time.Time          `firestore:"deliveredAt,omitempty"`
	CanceledAt       *time.Time          `firestore:"canceledAt,omitempty"`
}

type orderItemDocument struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	UnitPrice  int64  `firestore:"unitPrice"`
	ImageRef   string `firestore:"image,omitempty"`
	Quantity   int    `firestore:"quantity"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order, failing with a conflict when the id exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Create(ctx, order.ID, fromDomainOrder(order))
	return err
}

// Update overwrites the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if ref := strings.TrimSpace(filter.CustomerRef); ref != "" {
			query = query.Where("customerRef", "==", ref)
		}
		if filter.Status != nil {
			query = query.Where("status", "==", string(*filter.Status))
		}
		query = query.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func fromDomainOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			ImageRef:   item.ImageRef,
			Quantity:   item.Quantity,
		})
	}
	return orderDocument{
		OrderNumber:      order.OrderNumber,
		CustomerRef:      order.CustomerRef,
		Items:            items,
		Status:           string(order.Status),
		TotalPrice:       order.TotalPrice,
		ShippingAddress1: order.ShippingAddress1,
		ShippingAddress2: order.ShippingAddress2,
		City:             order.City,
		Zip:              order.Zip,
		Country:          order.Country,
		Phone:            order.Phone,
		PaymentMethod:    order.PaymentMethod,
		StockApplied:     order.StockApplied,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
		DeliveredAt:      order.DeliveredAt,
		CanceledAt:       order.CanceledAt,
	}
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			ImageRef:   item.ImageRef,
			Quantity:   item.Quantity,
		})
	}
	return domain.Order{
		ID:               id,
		OrderNumber:      doc.OrderNumber,
		CustomerRef:      doc.CustomerRef,
		Items:            items,
		Status:           domain.OrderStatus(doc.Status),
		TotalPrice:       doc.TotalPrice,
		ShippingAddress1: doc.ShippingAddress1,
		ShippingAddress2: doc.ShippingAddress2,
		City:             doc.City,
		Zip:              doc.Zip,
		Country:          doc.Country,
		Phone:            doc.Phone,
		PaymentMethod:    doc.PaymentMethod,
		StockApplied:     doc.StockApplied,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		DeliveredAt:      doc.DeliveredAt,
		CanceledAt:       doc.CanceledAt,
	}
}
