package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type numberAllocator interface {
	Next(ctx context.Context, tx *gorm.DB, now time.Time) (string, error)
}

type counterAllocator struct{}

func (counterAllocator) Next(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	return NextOrderNumber(ctx, tx, now)
}

// CartItem is one line of the incoming cart.
type CartItem struct {
	SellerID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// CheckoutInput is the cart payload accepted by Execute. AffiliateID is
// optional; when set, every order in the group gets an attribution row at
// the configured affiliate rate.
type CheckoutInput struct {
	BuyerRef    string
	AffiliateID uuid.UUID
	Items       []CartItem
}

// Service partitions a multi-seller cart into an order group of per-seller
// orders sharing one checkout attempt.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*models.OrderGroup, error)
}

type service struct {
	tx            txRunner
	ordersRepo    orders.Repository
	catalog       orders.SellerReader
	outbox        outboxPublisher
	numbers       numberAllocator
	currency      enums.Currency
	affiliateRate decimal.Decimal
	now           func() time.Time
}

// ServiceParams carries the dependencies for NewService. AffiliateRate is
// the decimal fraction frozen onto new attribution rows, e.g. "0.05".
type ServiceParams struct {
	Tx            txRunner
	OrdersRepo    orders.Repository
	Catalog       orders.SellerReader
	Outbox        outboxPublisher
	Numbers       numberAllocator
	Currency      enums.Currency
	AffiliateRate string
	Now           func() time.Time
}

// NewService builds the checkout splitter.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if !params.Currency.IsValid() {
		params.Currency = enums.CurrencyUSD
	}
	if params.Numbers == nil {
		params.Numbers = counterAllocator{}
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	affiliateRate := decimal.Zero
	if params.AffiliateRate != "" {
		parsed, err := decimal.NewFromString(params.AffiliateRate)
		if err != nil {
			return nil, fmt.Errorf("invalid affiliate rate %q: %w", params.AffiliateRate, err)
		}
		affiliateRate = parsed
	}
	return &service{
		tx:            params.Tx,
		ordersRepo:    params.OrdersRepo,
		catalog:       params.Catalog,
		outbox:        params.Outbox,
		numbers:       params.Numbers,
		currency:      params.Currency,
		affiliateRate: affiliateRate,
		now:           params.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*models.OrderGroup, error) {
	if input.BuyerRef == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "buyer reference required")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "cart contains no items")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if item.SellerID == uuid.Nil || item.ProductID == uuid.Nil {
			return nil, apperrors.New(apperrors.CodeValidation, "item seller and product ids required")
		}
	}

	var result *models.OrderGroup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)

		grouped, err := s.resolveAndGroup(ctx, input.Items)
		if err != nil {
			return err
		}

		createdGroup, err := ordersRepo.CreateOrderGroup(ctx, &models.OrderGroup{
			BuyerRef: input.BuyerRef,
		})
		if err != nil {
			return err
		}

		orderIDs := make([]uuid.UUID, 0, len(grouped))
		for sellerID, lines := range grouped {
			orderNumber, err := s.numbers.Next(ctx, tx, s.now())
			if err != nil {
				return err
			}

			var subtotal int64
			for _, line := range lines {
				subtotal += line.product.UnitPriceCents * int64(line.quantity)
			}

			createdOrder, err := ordersRepo.CreateOrder(ctx, &models.Order{
				OrderGroupID:  createdGroup.ID,
				SellerID:      sellerID,
				OrderNumber:   orderNumber,
				Status:        enums.OrderStatusPending,
				PaymentStatus: enums.PaymentStatusUnpaid,
				Currency:      s.currency,
				SubtotalCents: subtotal,
				TotalCents:    subtotal,
			})
			if err != nil {
				return err
			}

			items := make([]models.OrderItem, 0, len(lines))
			for _, line := range lines {
				productID := line.product.ID
				items = append(items, models.OrderItem{
					OrderID:         createdOrder.ID,
					ProductID:       &productID,
					Name:            line.product.Name,
					Quantity:        line.quantity,
					UnitPriceCents:  line.product.UnitPriceCents,
					TotalPriceCents: line.product.UnitPriceCents * int64(line.quantity),
				})
			}
			if err := ordersRepo.CreateOrderItems(ctx, items); err != nil {
				return err
			}

			if input.AffiliateID != uuid.Nil {
				err := ordersRepo.CreateAttribution(ctx, &models.AffiliateAttribution{
					OrderID:        createdOrder.ID,
					AffiliateID:    input.AffiliateID,
					CommissionRate: s.affiliateRate,
				})
				if err != nil {
					return err
				}
			}
			orderIDs = append(orderIDs, createdOrder.ID)
		}

		if err := s.emitGroupCreatedEvent(ctx, tx, createdGroup.ID, orderIDs); err != nil {
			return err
		}

		result, err = ordersRepo.FindOrderGroupByID(ctx, createdGroup.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type cartLine struct {
	product  *models.Product
	quantity int
}

// resolveAndGroup loads and validates every referenced seller and product,
// then buckets the lines per seller. Inactive references reject the whole
// cart so no partial group is ever created.
func (s *service) resolveAndGroup(ctx context.Context, items []CartItem) (map[uuid.UUID][]cartLine, error) {
	sellerCache := map[uuid.UUID]*models.Seller{}
	grouped := map[uuid.UUID][]cartLine{}

	for _, item := range items {
		seller, ok := sellerCache[item.SellerID]
		if !ok {
			loaded, err := s.catalog.FindSellerByID(ctx, item.SellerID)
			if err != nil {
				return nil, apperrors.New(apperrors.CodeValidation, "unknown seller").
					WithDetails(map[string]any{"seller_id": item.SellerID.String()})
			}
			sellerCache[item.SellerID] = loaded
			seller = loaded
		}
		if !seller.Active {
			return nil, apperrors.New(apperrors.CodeValidation, "seller is inactive").
				WithDetails(map[string]any{"seller_id": item.SellerID.String()})
		}

		product, err := s.catalog.FindProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown product").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if !product.Active {
			return nil, apperrors.New(apperrors.CodeValidation, "product is inactive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if product.SellerID != item.SellerID {
			return nil, apperrors.New(apperrors.CodeValidation, "product does not belong to seller").
				WithDetails(map[string]any{
					"product_id": item.ProductID.String(),
					"seller_id":  item.SellerID.String(),
				})
		}

		grouped[item.SellerID] = append(grouped[item.SellerID], cartLine{
			product:  product,
			quantity: item.Quantity,
		})
	}
	return grouped, nil
}

func (s *service) emitGroupCreatedEvent(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, orderIDs []uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderGroupCreated,
		AggregateType: enums.AggregateOrderGroup,
		AggregateID:   groupID,
		Data: outbox.OrderGroupCreatedEvent{
			OrderGroupID: groupID,
			OrderIDs:     append([]uuid.UUID{}, orderIDs...),
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
