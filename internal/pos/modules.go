package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storepos/internal/license"
	"github.com/storepos/pkg/models"
)

// WriteGate decides whether data may be mutated right now.
type WriteGate interface {
	CanWrite() bool
}

// DeniedError is returned by a write attempted while the licence is
// read-only. Its message is the same for every module.
type DeniedError struct {
	Op string
}

func (e DeniedError) Error() string { return license.ReadOnlyNotice }

func (e DeniedError) Unwrap() error { return license.ErrReadOnly }

var ErrInvalidInput = errors.New("pos: invalid input")

// Service hands out the feature modules for a logged in user.
type Service struct {
	data DataService
	gate WriteGate
}

func NewService(data DataService, gate WriteGate) *Service {
	return &Service{data: data, gate: gate}
}

// Login authenticates against the data service. It is never gated.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (models.User, error) {
	u, err := s.data.Authenticate(ctx, creds)
	if err != nil {
		return models.User{}, fmt.Errorf("login: %w", err)
	}
	if !u.Active {
		return models.User{}, fmt.Errorf("login: user %q is disabled", u.Username)
	}
	return u, nil
}

func (s *Service) open(user models.User, m Module) error {
	if !Allowed(Role(user.RoleID), m) {
		return fmt.Errorf("%w: %s cannot open %s", ErrForbidden, Role(user.RoleID), m)
	}
	return nil
}

// guard must run before any data call of a mutating operation.
func (s *Service) guard(op string) error {
	if s.gate.CanWrite() {
		return nil
	}
	log.Debug().Str("op", op).Msg("write blocked by read-only license")
	return DeniedError{Op: op}
}

// Inventory opens the inventory module.
func (s *Service) Inventory(user models.User) (*Inventory, error) {
	if err := s.open(user, ModuleInventory); err != nil {
		return nil, err
	}
	return &Inventory{s: s}, nil
}

// Sales opens the checkout module.
func (s *Service) Sales(user models.User) (*Sales, error) {
	if err := s.open(user, ModuleSales); err != nil {
		return nil, err
	}
	return &Sales{s: s, user: user}, nil
}

// Returns opens the returns module.
func (s *Service) Returns(user models.User) (*Returns, error) {
	if err := s.open(user, ModuleReturns); err != nil {
		return nil, err
	}
	return &Returns{s: s, user: user}, nil
}

// Reports opens the reports module.
func (s *Service) Reports(user models.User) (*Reports, error) {
	if err := s.open(user, ModuleReports); err != nil {
		return nil, err
	}
	return &Reports{s: s}, nil
}

// Settings opens the settings module.
func (s *Service) Settings(user models.User) (*Settings, error) {
	if err := s.open(user, ModuleSettings); err != nil {
		return nil, err
	}
	return &Settings{s: s}, nil
}

type Inventory struct{ s *Service }

func (m *Inventory) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	return m.s.data.ListProducts(ctx, f)
}

func (m *Inventory) LowStock(ctx context.Context) ([]models.Product, error) {
	return m.s.data.LowStockProducts(ctx)
}

func (m *Inventory) ListCategories(ctx context.Context) ([]models.Category, error) {
	return m.s.data.ListCategories(ctx)
}

func (m *Inventory) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := m.s.guard("CreateProduct"); err != nil {
		return models.Product{}, err
	}
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	return m.s.data.CreateProduct(ctx, p)
}

func (m *Inventory) UpdateProduct(ctx context.Context, p models.Product) error {
	if err := m.s.guard("UpdateProduct"); err != nil {
		return err
	}
	if p.ID == 0 {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	return m.s.data.UpdateProduct(ctx, p)
}

func (m *Inventory) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	if err := m.s.guard("CreateCategory"); err != nil {
		return models.Category{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return models.Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	return m.s.data.CreateCategory(ctx, c)
}

func (m *Inventory) UpdateCategory(ctx context.Context, c models.Category) error {
	if err := m.s.guard("UpdateCategory"); err != nil {
		return err
	}
	if c.ID == 0 || strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category id and name are required", ErrInvalidInput)
	}
	return m.s.data.UpdateCategory(ctx, c)
}

func validateProduct(p models.Product) error {
	switch {
	case strings.TrimSpace(p.Code) == "":
		return fmt.Errorf("%w: product code is required", ErrInvalidInput)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	case p.Price < 0 || p.Stock < 0 || p.MinStock < 0:
		return fmt.Errorf("%w: price and stock cannot be negative", ErrInvalidInput)
	case p.DiscountPercent < 0 || p.DiscountPercent > 100:
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

type Sales struct {
	s    *Service
	user models.User
}

func (m *Sales) FindProduct(ctx context.Context, code string) (models.Product, error) {
	return m.s.data.FindProductByCode(ctx, strings.TrimSpace(code))
}

func (m *Sales) Today(ctx context.Context, now time.Time) ([]models.Sale, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return m.s.data.SalesBetween(ctx, from, from.AddDate(0, 0, 1))
}

// RecordSale books a checkout for the module's user. The total is computed
// from the items when left at zero.
func (m *Sales) RecordSale(ctx context.Context, sale models.Sale) (models.Sale, error) {
	if err := m.s.guard("RecordSale"); err != nil {
		return models.Sale{}, err
	}
	if len(sale.Items) == 0 {
		return models.Sale{}, fmt.Errorf("%w: sale has no items", ErrInvalidInput)
	}
	for _, it := range sale.Items {
		if it.Quantity <= 0 {
			return models.Sale{}, fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
		}
	}
	if sale.Total == 0 {
		sale.Total = ItemsTotal(sale.Items)
	}
	sale.UserID = m.user.ID
	return m.s.data.RecordSale(ctx, sale)
}

// ItemsTotal sums quantity times unit price.
func ItemsTotal(items []models.SaleItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}

type Returns struct {
	s    *Service
	user models.User
}

func (m *Returns) FindSale(ctx context.Context, folio string) (models.Sale, error) {
	return m.s.data.FindSale(ctx, strings.TrimSpace(folio))
}

func (m *Returns) ProcessReturn(ctx context.Context, r models.Return) (models.Return, error) {
	if err := m.s.guard("ProcessReturn"); err != nil {
		return models.Return{}, err
	}
	if strings.TrimSpace(r.SaleFolio) == "" || len(r.Items) == 0 {
		return models.Return{}, fmt.Errorf("%w: a return needs a sale folio and items", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return models.Return{}, fmt.Errorf("%w: a return needs a reason", ErrInvalidInput)
	}
	if r.Refund == 0 {
		r.Refund = ItemsTotal(r.Items)
	}
	r.UserID = m.user.ID
	return m.s.data.ProcessReturn(ctx, r)
}

type Reports struct{ s *Service }

func (m *Reports) Summary(ctx context.Context, from, to time.Time) (models.SalesSummary, error) {
	if to.Before(from) {
		return models.SalesSummary{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidInput)
	}
	return m.s.data.SalesSummary(ctx, from, to)
}

func (m *Reports) LowStock(ctx context.Context) ([]models.Product, error) {
	return m.s.data.LowStockProducts(ctx)
}

type Settings struct{ s *Service }

func (m *Settings) StoreSettings(ctx context.Context) (models.StoreSettings, error) {
	return m.s.data.StoreSettings(ctx)
}

func (m *Settings) UpdateStoreSettings(ctx context.Context, st models.StoreSettings) error {
	if err := m.s.guard("UpdateStoreSettings"); err != nil {
		return err
	}
	if st.TaxRate < 0 || st.TaxRate > 1 {
		return fmt.Errorf("%w: tax rate must be a fraction between 0 and 1", ErrInvalidInput)
	}
	return m.s.data.UpdateStoreSettings(ctx, st)
}

func (m *Settings) ListUsers(ctx context.Context) ([]models.User, error) {
	return m.s.data.ListUsers(ctx)
}

func (m *Settings) CreateUser(ctx context.Context, u models.User, password string) (models.User, error) {
	if err := m.s.guard("CreateUser"); err != nil {
		return models.User{}, err
	}
	if strings.TrimSpace(u.Username) == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if _, ok := permissions[Role(u.RoleID)]; !ok {
		return models.User{}, fmt.Errorf("%w: unknown role %d", ErrInvalidInput, u.RoleID)
	}
	return m.s.data.CreateUser(ctx, u, password)
}

// UpdateUser changes a user; an empty password keeps the current one.
func (m *Settings) UpdateUser(ctx context.Context, u models.User, password string) error {
	if err := m.s.guard("UpdateUser"); err != nil {
		return err
	}
	if u.ID == 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if _, ok := permissions[Role(u.RoleID)]; !ok {
		return fmt.Errorf("%w: unknown role %d", ErrInvalidInput, u.RoleID)
	}
	return m.s.data.UpdateUser(ctx, u, password)
}
