package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
)

// Repository manages persistence for order groups and orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrderGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error)
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error)
	CreateAttribution(ctx context.Context, attribution *models.AffiliateAttribution) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrderGroup(ctx context.Context, group *models.OrderGroup) (*models.OrderGroup, error) {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrderGroupByID(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	var group models.OrderGroup
	if err := r.db.WithContext(ctx).
		Preload("Orders").
		First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindAttributionByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateAttribution, error) {
	var attribution models.AffiliateAttribution
	err := r.db.WithContext(ctx).
		First(&attribution, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attribution, nil
}

func (r *repository) CreateAttribution(ctx context.Context, attribution *models.AffiliateAttribution) error {
	return r.db.WithContext(ctx).Create(attribution).Error
}

// SellerReader is implemented by stores of sellers and products so checkout
// can validate references without importing their repositories wholesale.
type SellerReader interface {
	FindSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CatalogRepository implements SellerReader over the shared database.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindSellerByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).First(&seller, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *CatalogRepository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
