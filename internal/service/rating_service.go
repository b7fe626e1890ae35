package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grocery-service/internal/models"
	"grocery-service/internal/store"
	"grocery-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxCommentLength = 500

// RatingService records customer ratings of carriers and products.
// Averages are computed on every read.
type RatingService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRatingService creates a new rating service
func NewRatingService(store *store.Store) *RatingService {
	return &RatingService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ProductScore is one product's rating within a product-set rating
type ProductScore struct {
	ProductID int64  `json:"product_id"`
	Score     int    `json:"score"`
	Comment   string `json:"comment,omitempty"`
}

func validScore(score int, comment string) error {
	if score < 1 || score > 5 {
		return invalid("score", "must be between 1 and 5")
	}
	if len(comment) > maxCommentLength {
		return invalid("comment", fmt.Sprintf("must be at most %d characters", maxCommentLength))
	}
	return nil
}

// ratableOrder loads an order the customer may rate: their own and
// delivered
func ratableOrder(ctx context.Context, tx *store.Store, orderID, customerID int64) (*models.Order, error) {
	order, err := tx.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, fmt.Errorf("%w: order %d belongs to another customer", ErrForbidden, orderID)
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %d is %s, only delivered orders can be rated",
			ErrInvalidTransition, orderID, order.Status)
	}
	return order, nil
}

func alreadyRated(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrAlreadyRated, err)
	}
	return err
}

// RateCarrier rates the carrier that delivered an order. Each order's
// carrier can be rated once.
func (s *RatingService) RateCarrier(ctx context.Context, orderID, customerID int64, score int, comment string) (*models.CarrierRating, error) {
	ctx, span := util.StartSpan(ctx, "RatingService.RateCarrier", attribute.Int64("order_id", orderID))
	defer span.End()

	comment = strings.TrimSpace(comment)
	if err := validScore(score, comment); err != nil {
		return nil, err
	}

	var rating *models.CarrierRating
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		order, err := ratableOrder(ctx, tx, orderID, customerID)
		if err != nil {
			return err
		}
		if order.CarrierID == nil {
			return fmt.Errorf("%w: order %d has no carrier on record", ErrInvalidTransition, orderID)
		}

		rated, err := tx.HasCarrierRating(ctx, orderID)
		if err != nil {
			return err
		}
		if rated {
			return fmt.Errorf("%w: carrier of order %d", ErrAlreadyRated, orderID)
		}

		rating = &models.CarrierRating{
			OrderID:    orderID,
			CustomerID: customerID,
			CarrierID:  *order.CarrierID,
			Rating:     score,
			Comment:    comment,
		}
		return alreadyRated(tx.CreateCarrierRating(ctx, rating))
	})
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	util.RatingsTotal.WithLabelValues("carrier").Inc()
	s.logger.Info("Carrier rated",
		zap.Int64("order_id", orderID),
		zap.Int64("carrier_id", rating.CarrierID),
		zap.Int("score", score))
	return rating, nil
}

// RateProducts records the product ratings of a delivered order. The set
// is rated once per order; every product must be part of the order.
func (s *RatingService) RateProducts(ctx context.Context, orderID, customerID int64, scores []ProductScore) ([]models.ProductRating, error) {
	ctx, span := util.StartSpan(ctx, "RatingService.RateProducts", attribute.Int64("order_id", orderID))
	defer span.End()

	if len(scores) == 0 {
		return nil, invalid("ratings", "must not be empty")
	}
	seen := make(map[int64]bool, len(scores))
	for i := range scores {
		scores[i].Comment = strings.TrimSpace(scores[i].Comment)
		if err := validScore(scores[i].Score, scores[i].Comment); err != nil {
			return nil, err
		}
		if seen[scores[i].ProductID] {
			return nil, invalid("ratings", fmt.Sprintf("product %d listed twice", scores[i].ProductID))
		}
		seen[scores[i].ProductID] = true
	}

	var ratings []models.ProductRating
	err := s.store.RunAtomically(ctx, func(tx *store.Store) error {
		order, err := ratableOrder(ctx, tx, orderID, customerID)
		if err != nil {
			return err
		}

		rated, err := tx.HasProductRatings(ctx, orderID)
		if err != nil {
			return err
		}
		if rated {
			return fmt.Errorf("%w: products of order %d", ErrAlreadyRated, orderID)
		}

		inOrder := make(map[int64]bool, len(order.Items))
		for _, it := range order.Items {
			inOrder[it.ProductID] = true
		}

		for _, sc := range scores {
			if !inOrder[sc.ProductID] {
				return invalid("product_id", fmt.Sprintf("product %d is not part of order %d", sc.ProductID, orderID))
			}
			r := models.ProductRating{
				OrderID:    orderID,
				CustomerID: customerID,
				ProductID:  sc.ProductID,
				Rating:     sc.Score,
				Comment:    sc.Comment,
			}
			if err := tx.CreateProductRating(ctx, &r); err != nil {
				return alreadyRated(err)
			}
			ratings = append(ratings, r)
		}
		return nil
	})
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}

	util.RatingsTotal.WithLabelValues("product").Add(float64(len(ratings)))
	s.logger.Info("Products rated", zap.Int64("order_id", orderID), zap.Int("count", len(ratings)))
	return ratings, nil
}

// RateProduct rates a single product of a delivered order. It is the
// order's product-set rating with one entry.
func (s *RatingService) RateProduct(ctx context.Context, orderID, customerID, productID int64, score int, comment string) (*models.ProductRating, error) {
	ratings, err := s.RateProducts(ctx, orderID, customerID, []ProductScore{
		{ProductID: productID, Score: score, Comment: comment},
	})
	if err != nil {
		return nil, err
	}
	return &ratings[0], nil
}

// CarrierAverage returns the mean of all ratings of a carrier
func (s *RatingService) CarrierAverage(ctx context.Context, carrierID int64) (*models.RatingSummary, error) {
	ctx, span := util.StartSpan(ctx, "RatingService.CarrierAverage", attribute.Int64("carrier_id", carrierID))
	defer span.End()

	summary, err := s.store.CarrierRatingSummary(ctx, carrierID)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	summary.Average = summary.Average.Round(2)
	return summary, nil
}

// ProductAverage returns the mean of all ratings of a product
func (s *RatingService) ProductAverage(ctx context.Context, productID int64) (*models.RatingSummary, error) {
	ctx, span := util.StartSpan(ctx, "RatingService.ProductAverage", attribute.Int64("product_id", productID))
	defer span.End()

	summary, err := s.store.ProductRatingSummary(ctx, productID)
	if err != nil {
		return nil, util.SpanError(span, translate(err))
	}
	summary.Average = summary.Average.Round(2)
	return summary, nil
}

// ListCarrierRatings returns a carrier's ratings, newest first
func (s *RatingService) ListCarrierRatings(ctx context.Context, carrierID int64) ([]models.CarrierRating, error) {
	ratings, err := s.store.ListCarrierRatings(ctx, carrierID)
	return ratings, translate(err)
}

// ListOrderProductRatings returns the product ratings given for an order
func (s *RatingService) ListOrderProductRatings(ctx context.Context, orderID int64) ([]models.ProductRating, error) {
	ratings, err := s.store.ListOrderProductRatings(ctx, orderID)
	return ratings, translate(err)
}
