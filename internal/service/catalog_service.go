package service

import (
	"context"
	"strings"

	"grocery-service/internal/models"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CatalogService serves the product catalog. Effective prices are derived
// on every read.
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ProductView is a product as shown to customers
type ProductView struct {
	models.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Scarce         bool            `json:"scarce"`
}

func viewOf(p models.Product) ProductView {
	return ProductView{
		Product:        p,
		EffectivePrice: p.EffectivePrice(),
		Scarce:         p.Scarce(),
	}
}

func viewsOf(products []models.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, viewOf(p))
	}
	return views
}

// ProductInput carries the owner-editable product fields
type ProductInput struct {
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Type      string          `json:"type"`
	Unit      string          `json:"unit"`
	Price     decimal.Decimal `json:"price"`
	Stock     decimal.Decimal `json:"stock"`
	Threshold decimal.Decimal `json:"threshold"`
	Image     []byte          `json:"image,omitempty"`
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	in.Unit = strings.ToLower(strings.TrimSpace(in.Unit))
	in.Type = strings.TrimSpace(in.Type)

	if in.Name == "" {
		return invalid("name", "must not be empty")
	}
	if in.Category != models.CategoryFruit && in.Category != models.CategoryVegetable {
		return invalid("category", "must be FRUIT or VEGETABLE")
	}
	if in.Unit != models.UnitKg && in.Unit != models.UnitPiece {
		return invalid("unit", "must be kg or piece")
	}
	if !in.Price.IsPositive() {
		return invalid("price", "must be greater than zero")
	}
	if in.Stock.IsNegative() {
		return invalid("stock", "must not be negative")
	}
	if in.Threshold.IsNegative() {
		return invalid("threshold", "must not be negative")
	}
	if in.Unit == models.UnitPiece && !in.Stock.IsInteger() {
		return invalid("stock", "must be whole for products sold by the piece")
	}
	return nil
}

// Get returns one product
func (s *CatalogService) Get(ctx context.Context, id int64) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get", attribute.Int64("product_id", id))
	defer span.End()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	view := viewOf(*p)
	return &view, nil
}

// List returns every product
func (s *CatalogService) List(ctx context.Context) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	return viewsOf(products), nil
}

// ListAvailable returns products with stock left
func (s *CatalogService) ListAvailable(ctx context.Context) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListAvailable")
	defer span.End()

	products, err := s.store.ListAvailableProducts(ctx)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	return viewsOf(products), nil
}

// Search matches keyword against product names, ignoring case
func (s *CatalogService) Search(ctx context.Context, keyword string) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Search")
	defer span.End()

	products, err := s.store.SearchProducts(ctx, keyword)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	return viewsOf(products), nil
}

// Create adds a product to the catalog
func (s *CatalogService) Create(ctx context.Context, actor Actor, in ProductInput) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	p := &models.Product{
		Name:      in.Name,
		Category:  in.Category,
		Type:      in.Type,
		Unit:      in.Unit,
		Price:     in.Price,
		Stock:     in.Stock,
		Threshold: in.Threshold,
		Image:     in.Image,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	view := viewOf(*p)
	return &view, nil
}

// Update overwrites a product
func (s *CatalogService) Update(ctx context.Context, actor Actor, id int64, in ProductInput) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update", attribute.Int64("product_id", id))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:        id,
		Name:      in.Name,
		Category:  in.Category,
		Type:      in.Type,
		Unit:      in.Unit,
		Price:     in.Price,
		Stock:     in.Stock,
		Threshold: in.Threshold,
		Image:     in.Image,
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	return s.Get(ctx, id)
}

// Delete removes a product. Products that appear on any order line cannot
// be deleted and fail with ErrInUse.
func (s *CatalogService) Delete(ctx context.Context, actor Actor, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete", attribute.Int64("product_id", id))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return err
	}

	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return util.SpanError(span, translate(err))
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// Restock adds (or with a negative delta, writes off) stock
func (s *CatalogService) Restock(ctx context.Context, actor Actor, id int64, delta decimal.Decimal) (*ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Restock", attribute.Int64("product_id", id))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return nil, invalid("delta", "must not be zero")
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if p.Unit == models.UnitPiece && !delta.IsInteger() {
		return nil, invalid("delta", "must be whole for products sold by the piece")
	}

	if err := s.store.AdjustStock(ctx, id, delta); err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	s.logger.Info("Stock adjusted", zap.Int64("product_id", id), zap.String("delta", delta.String()))
	return s.Get(ctx, id)
}
