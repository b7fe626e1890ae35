package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"grocery-service/internal/models"

	"github.com/shopspring/decimal"
)

const (
	settingLoyaltyMinOrders = "loyalty_min_orders"
	settingLoyaltyRate      = "loyalty_rate"
)

// GetSetting reads one named setting
func (s *Store) GetSetting(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.get(ctx, &value, "SELECT value FROM settings WHERE name = ?", name); err != nil {
		return "", notFound(err, "setting", name)
	}
	return value, nil
}

// PutSetting writes one named setting
func (s *Store) PutSetting(ctx context.Context, name, value string) error {
	n, err := s.exec(ctx, "UPDATE settings SET value = ? WHERE name = ?", value, name)
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", name, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.exec(ctx, "INSERT INTO settings (name, value) VALUES (?, ?)", name, value); err != nil {
		if isUniqueViolation(err) {
			// unchanged value on a driver that reports matched rows as zero
			return nil
		}
		return fmt.Errorf("failed to insert setting %s: %w", name, err)
	}
	return nil
}

// LoyaltyRules reads the loyalty rules row
func (s *Store) LoyaltyRules(ctx context.Context) (*models.LoyaltyRules, error) {
	minRaw, err := s.GetSetting(ctx, settingLoyaltyMinOrders)
	if err != nil {
		return nil, err
	}
	rateRaw, err := s.GetSetting(ctx, settingLoyaltyRate)
	if err != nil {
		return nil, err
	}

	minOrders, err := strconv.Atoi(minRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", settingLoyaltyMinOrders, err)
	}
	rate, err := decimal.NewFromString(rateRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", settingLoyaltyRate, err)
	}

	return &models.LoyaltyRules{MinOrderCount: minOrders, Rate: rate}, nil
}

// SaveLoyaltyRules overwrites the loyalty rules
func (s *Store) SaveLoyaltyRules(ctx context.Context, rules models.LoyaltyRules) error {
	return s.RunAtomically(ctx, func(tx *Store) error {
		if err := tx.PutSetting(ctx, settingLoyaltyMinOrders, strconv.Itoa(rules.MinOrderCount)); err != nil {
			return err
		}
		return tx.PutSetting(ctx, settingLoyaltyRate, rules.Rate.String())
	})
}

// EnsureLoyaltyRules stores defaults unless rules already exist
func (s *Store) EnsureLoyaltyRules(ctx context.Context, defaults models.LoyaltyRules) error {
	_, err := s.LoyaltyRules(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.SaveLoyaltyRules(ctx, defaults)
}
