package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/pkg/utils"
)

// ProductManager defines the marketplace operations the product
// handler needs. *services.ProductService satisfies it.
type ProductManager interface {
	ListPublished(ctx context.Context, page, pageSize int) ([]models.Product, int64, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.Product, error)
	Register(ctx context.Context, userID uuid.UUID, input services.RegisterProductInput) (*models.Product, error)
	Purchase(ctx context.Context, productID uuid.UUID) (*services.CheckoutSession, error)
}

// ProductHandler handles the product endpoints: the public catalog,
// the seller's own listings, registration, and purchase.
type ProductHandler struct {
	products ProductManager
}

// NewProductHandler creates a product handler.
func NewProductHandler(products ProductManager) *ProductHandler {
	return &ProductHandler{products: products}
}

// List returns a page of published products.
//
// @Summary      Browse the catalog
// @Description  Returns published products, newest first, with pagination metadata.
// @Tags         products
// @Produce      json
// @Param        page       query  int  false  "1-based page number"
// @Param        page_size  query  int  false  "Items per page (max 100)"
// @Success      200  {object}  utils.PaginatedResponse
// @Failure      500  {object}  utils.ErrorResponse  "Store unavailable"
// @Router       /api/products [get]
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params := utils.ParsePageParams(r)

	products, total, err := h.products.ListPublished(r.Context(), params.Page, params.PageSize)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load products")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, utils.PaginatedResponse{
		Data:       products,
		Pagination: params.CalculateMeta(total),
	})
}

// MyProducts returns all of the authenticated user's listings,
// drafts included.
//
// @Summary      List my products
// @Description  Returns every product owned by the authenticated user.
// @Tags         products
// @Produce      json
// @Success      200  {array}   models.Product
// @Failure      401  {object}  utils.ErrorResponse  "Not authenticated"
// @Failure      500  {object}  utils.ErrorResponse  "Store unavailable"
// @Router       /api/products/my-products [get]
func (h *ProductHandler) MyProducts(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	products, err := h.products.ListMine(r.Context(), user.ID)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load products")
		return
	}

	if products == nil {
		products = []models.Product{}
	}
	utils.RespondWithJSON(w, r, http.StatusOK, products)
}

type registerProductRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Price       int                `json:"price"`
	Features    []string           `json:"features"`
	Type        models.ProductType `json:"type"`
	DemoURL     *string            `json:"demo_url,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty"`
	Prompts     []promptRequest    `json:"prompts,omitempty"`
	Publish     bool               `json:"publish"`
}

type promptRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Register creates a new listing owned by the authenticated user.
// Prompt collections must carry their prompts in the same request; the
// product and prompts are stored atomically.
//
// @Summary      Register a product
// @Description  Creates a listing, optionally published immediately.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        body  body      registerProductRequest  true  "Listing data"
// @Success      201   {object}  models.Product
// @Failure      400   {object}  utils.ErrorResponse  "Validation failed"
// @Failure      401   {object}  utils.ErrorResponse  "Not authenticated"
// @Failure      500   {object}  utils.ErrorResponse  "Store unavailable"
// @Router       /api/products/register [post]
func (h *ProductHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req registerProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	prompts := make([]models.Prompt, 0, len(req.Prompts))
	for _, p := range req.Prompts {
		prompts = append(prompts, models.Prompt{Input: p.Input, Output: p.Output})
	}

	product, err := h.products.Register(r.Context(), user.ID, services.RegisterProductInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Features:    req.Features,
		Type:        req.Type,
		DemoURL:     req.DemoURL,
		ImageURL:    req.ImageURL,
		Prompts:     prompts,
		Publish:     req.Publish,
	})
	if err != nil {
		if ve, ok := services.IsValidationError(err); ok {
			utils.RespondWithError(w, r, http.StatusBadRequest, ve.Message)
			return
		}
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Product registration failed")
		return
	}

	middleware.RecordProductRegistered(string(product.Type))
	utils.RespondWithJSON(w, r, http.StatusCreated, product)
}

type purchaseRequest struct {
	ProductID string `json:"product_id"`
}

// Purchase starts a checkout session for a published product and
// returns the gateway URL the frontend should redirect the buyer to.
//
// @Summary      Purchase a product
// @Description  Creates a hosted checkout session with the payment gateway.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        body  body      purchaseRequest  true  "Product to purchase"
// @Success      200   {object}  services.CheckoutSession
// @Failure      400   {object}  utils.ErrorResponse  "Invalid product ID"
// @Failure      401   {object}  utils.ErrorResponse  "Not authenticated"
// @Failure      404   {object}  utils.ErrorResponse  "No such published product"
// @Failure      502   {object}  utils.ErrorResponse  "Payment gateway error"
// @Router       /api/products/purchase [post]
func (h *ProductHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}

	session, err := h.products.Purchase(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			middleware.RecordCheckout("not_found")
			utils.RespondWithError(w, r, http.StatusNotFound, "Product not found")
		case errors.Is(err, services.ErrPaymentGateway):
			middleware.RecordCheckout("gateway_error")
			utils.RespondWithError(w, r, http.StatusBadGateway, "Payment gateway error")
		default:
			middleware.RecordCheckout("error")
			utils.RespondWithError(w, r, http.StatusInternalServerError, "Purchase failed")
		}
		return
	}

	middleware.RecordCheckout("success")
	utils.RespondWithJSON(w, r, http.StatusOK, session)
}
