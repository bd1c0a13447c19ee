package pos

import (
	"context"
	"time"

	"github.com/storepos/pkg/models"
)

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Query      string
	CategoryID int64
}

// DataService is the store data backend the modules delegate to.
type DataService interface {
	Authenticate(ctx context.Context, creds models.Credentials) (models.User, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	FindProductByCode(ctx context.Context, code string) (models.Product, error)
	LowStockProducts(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	UpdateCategory(ctx context.Context, c models.Category) error

	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u models.User, password string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User, password string) error

	StoreSettings(ctx context.Context) (models.StoreSettings, error)
	UpdateStoreSettings(ctx context.Context, s models.StoreSettings) error

	RecordSale(ctx context.Context, sale models.Sale) (models.Sale, error)
	SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
	FindSale(ctx context.Context, folio string) (models.Sale, error)
	ProcessReturn(ctx context.Context, r models.Return) (models.Return, error)
	SalesSummary(ctx context.Context, from, to time.Time) (models.SalesSummary, error)
}
