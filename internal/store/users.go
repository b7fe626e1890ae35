package store

import (
	"context"
	"fmt"
	"time"

	"grocery-service/internal/models"
)

const userColumns = `id, username, password_hash, role, address, phone, created_at`

// CreateUser inserts a user; a taken username fails with ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = timestamp(time.Now())

	id, err := s.insert(ctx, `
		INSERT INTO users (username, password_hash, role, address, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.Role, u.Address, u.Phone, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %s: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.ID = id
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE username = ?", username); err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

// ListUsersByRole retrieves users holding a role
func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	users := []models.User{}
	err := s.selectAll(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY username", role)
	return users, err
}

// DeleteUser removes a user holding the given role
func (s *Store) DeleteUser(ctx context.Context, id int64, role string) error {
	n, err := s.exec(ctx, "DELETE FROM users WHERE id = ? AND role = ?", id, role)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", role, id, ErrNotFound)
	}
	return nil
}

// ListCarrierStats lists carriers with delivery counts and rating averages
func (s *Store) ListCarrierStats(ctx context.Context) ([]models.CarrierStats, error) {
	stats := []models.CarrierStats{}
	err := s.selectAll(ctx, &stats, `
		SELECT u.id AS carrier_id, u.username,
			(SELECT COUNT(*) FROM orders o WHERE o.carrier_id = u.id AND o.status = ?) AS deliveries,
			(SELECT COALESCE(AVG(r.rating), 0) FROM carrier_ratings r WHERE r.carrier_id = u.id) AS average_rating,
			(SELECT COUNT(*) FROM carrier_ratings r WHERE r.carrier_id = u.id) AS rating_count
		FROM users u
		WHERE u.role = ?
		ORDER BY u.username`,
		models.OrderStatusCompleted, models.RoleCarrier)
	return stats, err
}
