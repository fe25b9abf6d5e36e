package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/database"
	"github.com/promptmarket/api/internal/models"
)

// checkoutCurrency is the settlement currency for all listings.
const checkoutCurrency = "usd"

// ProductStore is the persistence interface the product service
// depends on. *database.PostgresDB satisfies it.
type ProductStore interface {
	ListProductsByUser(ctx context.Context, userID uuid.UUID) ([]models.Product, error)
	GetProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, params database.CreateProductParams) (*models.Product, error)
}

// ProductListing serves the public catalog read path, usually backed
// by the product cache. *cache.ProductCache satisfies it.
type ProductListing interface {
	ListPublished(ctx context.Context, page, pageSize int) ([]models.Product, int64, error)
}

// ListingInvalidator drops cached catalog pages after a write.
type ListingInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ProductService implements marketplace listings: the public catalog,
// the seller's own products, registration of new listings, and the
// purchase path through the payment gateway.
type ProductService struct {
	store        ProductStore
	listing      ProductListing
	invalidator  ListingInvalidator
	gateway      PaymentGateway
	frontendURL  string
	queryTimeout time.Duration
}

// NewProductService creates a product service. frontendURL is where
// buyers land after checkout completes or is cancelled.
func NewProductService(store ProductStore, listing ProductListing, invalidator ListingInvalidator, gateway PaymentGateway, frontendURL string, queryTimeout time.Duration) *ProductService {
	return &ProductService{
		store:        store,
		listing:      listing,
		invalidator:  invalidator,
		gateway:      gateway,
		frontendURL:  frontendURL,
		queryTimeout: queryTimeout,
	}
}

// ListPublished returns a page of the public catalog with the total
// published count for pagination.
func (s *ProductService) ListPublished(ctx context.Context, page, pageSize int) ([]models.Product, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	products, total, err := s.listing.ListPublished(ctx, page, pageSize)
	if err != nil {
		log.Error().Err(err).Msg("Catalog listing failed")
		return nil, 0, ErrStoreUnavailable
	}
	return products, total, nil
}

// ListMine returns every product owned by the user, drafts included.
func (s *ProductService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	products, err := s.store.ListProductsByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("User product listing failed")
		return nil, ErrStoreUnavailable
	}
	return products, nil
}

// RegisterProductInput carries the fields of a new listing submission.
type RegisterProductInput struct {
	Title       string
	Description string
	Price       int
	Features    []string
	Type        models.ProductType
	DemoURL     *string
	ImageURL    *string
	Prompts     []models.Prompt
	Publish     bool
}

// Register validates and creates a new listing owned by userID. The
// product and its prompts are created atomically; cached catalog pages
// are invalidated afterwards so the new listing shows up.
func (s *ProductService) Register(ctx context.Context, userID uuid.UUID, input RegisterProductInput) (*models.Product, error) {
	if err := validateRegisterProduct(input); err != nil {
		return nil, err
	}

	status := models.ProductStatusDraft
	if input.Publish {
		status = models.ProductStatusPublished
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.store.CreateProduct(ctx, database.CreateProductParams{
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		Features:    input.Features,
		Type:        input.Type,
		Status:      status,
		DemoURL:     input.DemoURL,
		ImageURL:    input.ImageURL,
		Prompts:     input.Prompts,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Product registration failed")
		return nil, ErrStoreUnavailable
	}

	if err := s.invalidator.Invalidate(ctx); err != nil {
		// The cache will converge via TTL
		log.Warn().Err(err).Msg("Catalog cache invalidation failed after registration")
	}

	return product, nil
}

// Purchase starts a checkout session for a published product and
// returns the gateway URL the buyer should be redirected to. Draft
// products cannot be purchased.
func (s *ProductService) Purchase(ctx context.Context, productID uuid.UUID) (*CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Str("product_id", productID.String()).Msg("Product lookup failed")
		return nil, ErrStoreUnavailable
	}

	if product.Status != models.ProductStatusPublished {
		return nil, ErrNotFound
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		ProductID:   product.ID.String(),
		ProductName: product.Title,
		AmountCents: product.Price * 100, // price is stored in whole dollars
		Currency:    checkoutCurrency,
		SuccessURL:  fmt.Sprintf("%s/purchase/success?product=%s", s.frontendURL, product.ID),
		CancelURL:   fmt.Sprintf("%s/products/%s", s.frontendURL, product.ID),
	})
	if err != nil {
		return nil, ErrPaymentGateway
	}

	log.Info().
		Str("product_id", product.ID.String()).
		Str("checkout_id", session.ID).
		Msg("Checkout session created")

	return session, nil
}

func validateRegisterProduct(input RegisterProductInput) error {
	if input.Title == "" {
		return NewValidationError("title", "title must not be empty")
	}
	if input.Price < 0 {
		return NewValidationError("price", "price must not be negative")
	}

	switch input.Type {
	case models.ProductTypeWebApp:
		if len(input.Prompts) > 0 {
			return NewValidationError("prompts", "web app products cannot carry prompts")
		}
	case models.ProductTypePromptCollection:
		if len(input.Prompts) == 0 {
			return NewValidationError("prompts", "prompt collections need at least one prompt")
		}
		for _, prompt := range input.Prompts {
			if prompt.Input == "" || prompt.Output == "" {
				return NewValidationError("prompts", "each prompt needs both input and output")
			}
		}
	default:
		return NewValidationError("type", "type must be web_app or prompt_collection")
	}

	return nil
}
