// Package seed loads a YAML catalog of products, coupons and staff accounts
// into a fresh store. Entries that already exist are skipped, so a seed file
// can be applied more than once.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"grocery-service/internal/models"
	"grocery-service/internal/service"
	"grocery-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the seed document
type File struct {
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
	Coupons  []Coupon  `yaml:"coupons"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Address  string `yaml:"address"`
	Phone    string `yaml:"phone"`
}

// Product amounts are strings so that "0.5" survives without float rounding
type Product struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	Type      string `yaml:"type"`
	Unit      string `yaml:"unit"`
	Price     string `yaml:"price"`
	Stock     string `yaml:"stock"`
	Threshold string `yaml:"threshold"`
}

type Coupon struct {
	Code     string `yaml:"code"`
	Discount string `yaml:"discount"`
	Expires  string `yaml:"expires"`
}

// Services are the entry points the seeder writes through
type Services struct {
	Users    *service.UserService
	Catalog  *service.CatalogService
	Registry *service.RegistryService
}

// Summary counts what a run created and skipped
type Summary struct {
	Users    int
	Products int
	Coupons  int
	Skipped  int
}

// Load parses a seed document
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

func amount(field, v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return d, nil
}

// Apply writes the document through the services. Users go first so the
// first OWNER listed becomes the actor for catalog and coupon writes; with
// no owner in the file, bootstrap acts as one.
func Apply(ctx context.Context, svc Services, f *File) (*Summary, error) {
	logger := util.GetLogger()
	sum := &Summary{}
	bootstrap := service.Actor{Role: models.RoleOwner}

	for _, u := range f.Users {
		created, err := svc.Users.Create(ctx, bootstrap, service.NewUser{
			Username: u.Username,
			Password: u.Password,
			Role:     strings.ToUpper(u.Role),
			Address:  u.Address,
			Phone:    u.Phone,
		})
		if errors.Is(err, service.ErrDuplicate) {
			logger.Info("User exists, skipping", zap.String("username", u.Username))
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Username, err)
		}
		sum.Users++
		if bootstrap.UserID == 0 && created.Role == models.RoleOwner {
			bootstrap.UserID = created.ID
		}
	}

	existing, err := svc.Catalog.List(ctx)
	if err != nil {
		return sum, err
	}
	names := make(map[string]bool, len(existing))
	for _, p := range existing {
		names[strings.ToLower(p.Name)] = true
	}

	for _, p := range f.Products {
		if names[strings.ToLower(strings.TrimSpace(p.Name))] {
			sum.Skipped++
			continue
		}
		in := service.ProductInput{Name: p.Name, Category: p.Category, Type: p.Type, Unit: p.Unit}
		if in.Price, err = amount("price", p.Price); err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Name, err)
		}
		if in.Stock, err = amount("stock", p.Stock); err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Name, err)
		}
		if in.Threshold, err = amount("threshold", p.Threshold); err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Name, err)
		}
		if _, err := svc.Catalog.Create(ctx, bootstrap, in); err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Name, err)
		}
		names[strings.ToLower(strings.TrimSpace(p.Name))] = true
		sum.Products++
	}

	for _, c := range f.Coupons {
		discount, err := amount("discount", c.Discount)
		if err != nil {
			return sum, fmt.Errorf("coupon %s: %w", c.Code, err)
		}
		expires, err := time.Parse(time.DateOnly, strings.TrimSpace(c.Expires))
		if err != nil {
			return sum, fmt.Errorf("coupon %s: invalid expiry %q: %w", c.Code, c.Expires, err)
		}
		_, err = svc.Registry.CreateCoupon(ctx, bootstrap, service.CouponInput{
			Code:           c.Code,
			DiscountAmount: discount,
			ExpiryDate:     expires,
		})
		if errors.Is(err, service.ErrDuplicate) {
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("coupon %s: %w", c.Code, err)
		}
		sum.Coupons++
	}

	logger.Info("Seed applied",
		zap.Int("users", sum.Users),
		zap.Int("products", sum.Products),
		zap.Int("coupons", sum.Coupons),
		zap.Int("skipped", sum.Skipped))
	return sum, nil
}
