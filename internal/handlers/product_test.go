package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/internal/testutil"
	"github.com/promptmarket/api/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProductManager struct {
	published   []models.Product
	total       int64
	mine        []models.Product
	registered  *models.Product
	session     *services.CheckoutSession
	listErr     error
	registerErr error
	purchaseErr error

	lastPage     int
	lastPageSize int
	lastInput    services.RegisterProductInput
}

func (f *fakeProductManager) ListPublished(_ context.Context, page, pageSize int) ([]models.Product, int64, error) {
	f.lastPage = page
	f.lastPageSize = pageSize
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.published, f.total, nil
}

func (f *fakeProductManager) ListMine(_ context.Context, _ uuid.UUID) ([]models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.mine, nil
}

func (f *fakeProductManager) Register(_ context.Context, _ uuid.UUID, input services.RegisterProductInput) (*models.Product, error) {
	f.lastInput = input
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registered, nil
}

func (f *fakeProductManager) Purchase(_ context.Context, _ uuid.UUID) (*services.CheckoutSession, error) {
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return f.session, nil
}

func authenticatedRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	req := testutil.MakeRequest(t, method, url, body)
	session := testutil.TestSession(testutil.TestUser())
	return req.WithContext(middleware.WithSession(req.Context(), session))
}

func TestListProducts(t *testing.T) {
	t.Run("returns a paginated catalog page", func(t *testing.T) {
		owner := uuid.New()
		products := &fakeProductManager{
			published: []models.Product{*testutil.TestProduct(owner), *testutil.TestProduct(owner)},
			total:     42,
		}
		handler := NewProductHandler(products)

		req := httptest.NewRequest(http.MethodGet, "/api/products?page=2&page_size=10", nil)
		resp := httptest.NewRecorder()

		handler.List(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusOK)
		assert.Equal(t, 2, products.lastPage)
		assert.Equal(t, 10, products.lastPageSize)

		var body utils.PaginatedResponse
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, 2, body.Pagination.Page)
		assert.Equal(t, int64(42), body.Pagination.TotalItems)
	})

	t.Run("defaults bad pagination input", func(t *testing.T) {
		products := &fakeProductManager{}
		handler := NewProductHandler(products)

		req := httptest.NewRequest(http.MethodGet, "/api/products?page=-3&page_size=9999", nil)
		resp := httptest.NewRecorder()

		handler.List(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusOK)
		assert.Equal(t, 1, products.lastPage)
		assert.LessOrEqual(t, products.lastPageSize, 100)
	})

	t.Run("answers 500 when the catalog is unavailable", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{listErr: services.ErrStoreUnavailable})

		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		resp := httptest.NewRecorder()

		handler.List(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusInternalServerError)
	})
}

func TestMyProducts(t *testing.T) {
	t.Run("returns the seller's listings", func(t *testing.T) {
		owner := uuid.New()
		handler := NewProductHandler(&fakeProductManager{
			mine: []models.Product{*testutil.TestProduct(owner)},
		})

		resp := httptest.NewRecorder()
		handler.MyProducts(resp, authenticatedRequest(t, http.MethodGet, "/api/products/my-products", nil))

		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var body []models.Product
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Len(t, body, 1)
	})

	t.Run("answers an empty array rather than null", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{})

		resp := httptest.NewRecorder()
		handler.MyProducts(resp, authenticatedRequest(t, http.MethodGet, "/api/products/my-products", nil))

		testutil.AssertStatusCode(t, resp, http.StatusOK)
		assert.JSONEq(t, "[]", resp.Body.String())
	})

	t.Run("answers 401 without a session", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{})

		req := httptest.NewRequest(http.MethodGet, "/api/products/my-products", nil)
		resp := httptest.NewRecorder()

		handler.MyProducts(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	})
}

func TestRegisterProduct(t *testing.T) {
	t.Run("creates the listing and answers 201", func(t *testing.T) {
		owner := uuid.New()
		created := testutil.TestProduct(owner)
		products := &fakeProductManager{registered: created}
		handler := NewProductHandler(products)

		resp := httptest.NewRecorder()
		handler.Register(resp, authenticatedRequest(t, http.MethodPost, "/api/products/register", map[string]interface{}{
			"title":   created.Title,
			"price":   created.Price,
			"type":    "prompt_collection",
			"publish": true,
			"prompts": []map[string]string{
				{"input": "Summarize {text}", "output": "A summary"},
			},
		}))

		testutil.AssertStatusCode(t, resp, http.StatusCreated)
		assert.Equal(t, created.Title, products.lastInput.Title)
		assert.True(t, products.lastInput.Publish)
		require.Len(t, products.lastInput.Prompts, 1)
		assert.Equal(t, "Summarize {text}", products.lastInput.Prompts[0].Input)
	})

	t.Run("answers 400 with the validation message", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{
			registerErr: services.NewValidationError("title", "title must not be empty"),
		})

		resp := httptest.NewRecorder()
		handler.Register(resp, authenticatedRequest(t, http.MethodPost, "/api/products/register", map[string]interface{}{
			"type": "web_app",
		}))

		testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

		var body utils.ErrorResponse
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, "title must not be empty", body.Message)
	})

	t.Run("answers 401 without a session", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{})

		req := testutil.MakeRequest(t, http.MethodPost, "/api/products/register", map[string]string{"title": "X"})
		resp := httptest.NewRecorder()

		handler.Register(resp, req)

		testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	})
}

func TestPurchaseProduct(t *testing.T) {
	productID := uuid.New()

	t.Run("returns the checkout session", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{
			session: &services.CheckoutSession{ID: "cs_test_123", URL: "https://pay.example.com/cs_test_123"},
		})

		resp := httptest.NewRecorder()
		handler.Purchase(resp, authenticatedRequest(t, http.MethodPost, "/api/products/purchase", map[string]string{
			"product_id": productID.String(),
		}))

		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var body services.CheckoutSession
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, "cs_test_123", body.ID)
		assert.NotEmpty(t, body.URL)
	})

	t.Run("answers 400 for a malformed product ID", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{})

		resp := httptest.NewRecorder()
		handler.Purchase(resp, authenticatedRequest(t, http.MethodPost, "/api/products/purchase", map[string]string{
			"product_id": "not-a-uuid",
		}))

		testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("answers 404 for drafts and unknown products", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{purchaseErr: services.ErrNotFound})

		resp := httptest.NewRecorder()
		handler.Purchase(resp, authenticatedRequest(t, http.MethodPost, "/api/products/purchase", map[string]string{
			"product_id": productID.String(),
		}))

		testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	})

	t.Run("answers 502 when the gateway fails", func(t *testing.T) {
		handler := NewProductHandler(&fakeProductManager{purchaseErr: services.ErrPaymentGateway})

		resp := httptest.NewRecorder()
		handler.Purchase(resp, authenticatedRequest(t, http.MethodPost, "/api/products/purchase", map[string]string{
			"product_id": productID.String(),
		}))

		testutil.AssertStatusCode(t, resp, http.StatusBadGateway)
	})
}
