package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grocery-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, category, type, unit, price, stock, threshold, image, created_at`

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.get(ctx, &p, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

// ListProducts retrieves every product
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectAll(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY name, id")
	return products, err
}

// ListAvailableProducts retrieves products with stock left
func (s *Store) ListAvailableProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectAll(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE stock > 0 ORDER BY name, id")
	return products, err
}

// SearchProducts matches keyword as a case-insensitive substring of the name
func (s *Store) SearchProducts(ctx context.Context, keyword string) ([]models.Product, error) {
	products := []models.Product{}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(keyword))) + "%"
	err := s.selectAll(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE LOWER(name) LIKE ? ESCAPE '!' ORDER BY name, id", pattern)
	return products, err
}

// likeEscaper makes LIKE wildcards in a keyword match literally
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	err = s.selectAll(ctx, &products, query, args...)
	return products, err
}

// CreateProduct inserts a product and fills in its ID
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	p.CreatedAt = timestamp(time.Now())

	id, err := s.insert(ctx, `
		INSERT INTO products (name, category, type, unit, price, stock, threshold, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Category, p.Type, p.Unit, p.Price, p.Stock, p.Threshold, p.Image, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	p.ID = id
	return nil
}

// UpdateProduct overwrites the editable fields of a product. A nil image
// leaves the stored image untouched.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `UPDATE products SET name = ?, category = ?, type = ?, unit = ?, price = ?, stock = ?, threshold = ?`
	args := []interface{}{p.Name, p.Category, p.Type, p.Unit, p.Price, p.Stock, p.Threshold}
	if p.Image != nil {
		query += ", image = ?"
		args = append(args, p.Image)
	}
	query += " WHERE id = ?"
	args = append(args, p.ID)

	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

// DeleteProduct removes a product that no order line refers to
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	refs, err := s.count(ctx, "SELECT COUNT(*) FROM order_items WHERE product_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to count product references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("product %d is on %d order lines: %w", id, refs, ErrReferenced)
	}

	if _, err := s.exec(ctx, "DELETE FROM product_ratings WHERE product_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete product ratings: %w", err)
	}

	n, err := s.exec(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// AdjustStock adds delta (which may be negative) to the product's stock.
// The update is conditional so stock never drops below zero. The sum is
// rounded to the column scale because sqlite adds NUMERIC values as floats.
func (s *Store) AdjustStock(ctx context.Context, productID int64, delta decimal.Decimal) error {
	n, err := s.exec(ctx,
		"UPDATE products SET stock = ROUND(stock + ?, 3) WHERE id = ? AND ROUND(stock + ?, 3) >= 0",
		delta, productID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetProduct(ctx, productID); err != nil {
		return err
	}
	return fmt.Errorf("product %d delta %s: %w", productID, delta, ErrStockConflict)
}
