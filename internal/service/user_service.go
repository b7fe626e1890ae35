package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"grocery-service/internal/models"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,32}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// UserService is the user and carrier directory plus authentication
type UserService struct {
	store    *store.Store
	logger   *zap.Logger
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewUserService creates a new user service signing tokens with secret
func NewUserService(store *store.Store, secret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		store:    store,
		logger:   util.GetLogger(),
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// NewUser carries a registration
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

func (u *NewUser) validate() error {
	u.Username = strings.TrimSpace(u.Username)
	u.Address = strings.TrimSpace(u.Address)
	u.Phone = strings.ReplaceAll(strings.TrimSpace(u.Phone), " ", "")

	if !usernamePattern.MatchString(u.Username) {
		return invalid("username", "must be 3 to 32 letters, digits, '_' or '.'")
	}
	if err := validatePassword(u.Password); err != nil {
		return err
	}
	switch u.Role {
	case models.RoleCustomer, models.RoleCarrier, models.RoleOwner:
	default:
		return invalid("role", "must be CUSTOMER, CARRIER or OWNER")
	}
	if u.Phone != "" && !phonePattern.MatchString(u.Phone) {
		return invalid("phone", "must be 10 to 15 digits with an optional leading +")
	}
	if u.Role == models.RoleCustomer {
		if u.Address == "" {
			return invalid("address", "is required for customers")
		}
		if u.Phone == "" {
			return invalid("phone", "is required for customers")
		}
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return invalid("password", "must be at least 8 characters")
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return invalid("password", "must contain a letter and a digit")
	}
	return nil
}

func (s *UserService) create(ctx context.Context, in NewUser) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		Address:      in.Address,
		Phone:        in.Phone,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, translate(err)
	}

	s.logger.Info("User created",
		zap.Int64("user_id", u.ID),
		zap.String("username", u.Username),
		zap.String("role", u.Role))
	return u, nil
}

// Register creates a customer account
func (s *UserService) Register(ctx context.Context, in NewUser) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	in.Role = models.RoleCustomer
	u, err := s.create(ctx, in)
	return u, util.SpanError(span, err)
}

// Create lets an owner add staff (carriers or other owners) or customers
func (s *UserService) Create(ctx context.Context, actor Actor, in NewUser) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Create")
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in)
	return u, util.SpanError(span, err)
}

// GetByID returns a user
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// ListByRole returns the users holding role
func (s *UserService) ListByRole(ctx context.Context, actor Actor, role string) ([]models.User, error) {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsersByRole(ctx, role)
	return users, translate(err)
}

// ListCarriers returns the carrier directory
func (s *UserService) ListCarriers(ctx context.Context, actor Actor) ([]models.User, error) {
	return s.ListByRole(ctx, actor, models.RoleCarrier)
}

// DeleteCarrier removes a carrier that was never assigned an order. A
// carrier with delivery history stays so its orders and ratings keep
// pointing at it.
func (s *UserService) DeleteCarrier(ctx context.Context, actor Actor, carrierID int64) error {
	ctx, span := util.StartSpan(ctx, "UserService.DeleteCarrier", attribute.Int64("carrier_id", carrierID))
	defer span.End()

	if err := requireRole(actor, models.RoleOwner); err != nil {
		return err
	}

	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		assigned, err := tx.CountCarrierOrders(ctx, carrierID)
		if err != nil {
			return err
		}
		if assigned > 0 {
			return fmt.Errorf("%w: carrier %d is referenced by %d orders", ErrInUse, carrierID, assigned)
		}
		return tx.DeleteUser(ctx, carrierID, models.RoleCarrier)
	})
	if err != nil {
		return util.SpanError(span, translate(err))
	}

	s.logger.Info("Carrier deleted", zap.Int64("carrier_id", carrierID))
	return nil
}

// Claims are the JWT claims issued at login
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Login checks credentials and issues a signed token
func (s *UserService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login")
	defer span.End()

	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	}
	if err != nil {
		return "", nil, util.SpanError(span, translate(err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	}

	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, u, nil
}

// ParseToken verifies a token and returns the actor it was issued to
func (s *UserService) ParseToken(token string) (Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: bad subject", ErrUnauthenticated)
	}
	return Actor{UserID: id, Role: claims.Role}, nil
}
