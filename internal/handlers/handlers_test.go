package handlers_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildmarket/db"
	"buildmarket/internal/auth"
	"buildmarket/internal/boq"
	"buildmarket/internal/config"
	"buildmarket/internal/handlers"
	"buildmarket/internal/handlers/testutils"
	"buildmarket/internal/payment"
	"buildmarket/internal/settlement"
	"buildmarket/models"

	"github.com/stretchr/testify/require"
)

// MockStorage implements handlers.StorageInterface plus the settlement and
// BOQ store interfaces, with per-test function overrides.
type MockStorage struct {
	GetProjectFunc  func(ctx context.Context, id int) (*models.Project, error)
	SubmitBidFunc   func(ctx context.Context, b *models.Bid, allowRebid bool) error
	GetBidFunc      func(ctx context.Context, id int) (*models.Bid, error)
	AcceptBidFunc   func(ctx context.Context, bidID int, finalAmount int64) (*models.Bid, error)
	PlaceOrderFunc  func(ctx context.Context, cartID, userID int, paymentRef string) (*models.Order, error)
	GetOrderFunc    func(ctx context.Context, id int) (*models.Order, error)
	CheckSplitFunc  func(ctx context.Context, id int) (bool, error)
	GetSplitsFunc   func(ctx context.Context, orderID int) ([]models.SplitCalculation, error)
	EstimationItems []models.EstimationItem

	insertedSplits []models.SplitCalculation
	upsertedBOQ    *models.BillOfQuantities
}

func (m *MockStorage) CreateProject(ctx context.Context, p *models.Project) error {
	p.ID = 1
	return nil
}

func (m *MockStorage) GetProject(ctx context.Context, id int) (*models.Project, error) {
	if m.GetProjectFunc != nil {
		return m.GetProjectFunc(ctx, id)
	}
	return &models.Project{ID: id, OwnerID: 1, Name: "Warehouse refit", Status: models.ProjectStatusOpen}, nil
}

func (m *MockStorage) PublishProject(ctx context.Context, id, ownerID int) error { return nil }

func (m *MockStorage) GetOpenProjects(ctx context.Context, limit, offset int) ([]models.Project, error) {
	return []models.Project{{ID: 1, Name: "Warehouse refit", Status: models.ProjectStatusOpen}}, nil
}

func (m *MockStorage) GetUserProjects(ctx context.Context, ownerID, limit, offset int) ([]models.Project, error) {
	return []models.Project{{ID: 1, OwnerID: ownerID, Name: "Warehouse refit"}}, nil
}

func (m *MockStorage) AddEstimationItem(ctx context.Context, projectID int, item *models.EstimationItem) error {
	item.ID = 1
	return nil
}

func (m *MockStorage) GetEstimationItems(ctx context.Context, projectID int) ([]models.EstimationItem, error) {
	return m.EstimationItems, nil
}

func (m *MockStorage) SubmitBid(ctx context.Context, b *models.Bid, allowRebid bool) error {
	if m.SubmitBidFunc != nil {
		return m.SubmitBidFunc(ctx, b, allowRebid)
	}
	b.ID = 1
	b.Status = models.BidStatusPending
	return nil
}

func (m *MockStorage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	if m.GetBidFunc != nil {
		return m.GetBidFunc(ctx, id)
	}
	return &models.Bid{ID: id, ProjectID: 1, SellerID: 2, Amount: 9000, Status: models.BidStatusPending}, nil
}

func (m *MockStorage) GetBidsForProject(ctx context.Context, projectID int) ([]models.Bid, error) {
	return []models.Bid{
		{ID: 2, ProjectID: projectID, SellerID: 3, Amount: 9500, Status: models.BidStatusPending},
		{ID: 1, ProjectID: projectID, SellerID: 2, Amount: 9000, Status: models.BidStatusPending},
	}, nil
}

func (m *MockStorage) AcceptBid(ctx context.Context, bidID int, finalAmount int64) (*models.Bid, error) {
	if m.AcceptBidFunc != nil {
		return m.AcceptBidFunc(ctx, bidID, finalAmount)
	}
	return &models.Bid{ID: bidID, ProjectID: 1, SellerID: 2, Amount: finalAmount, Status: models.BidStatusAccepted}, nil
}

func (m *MockStorage) WithdrawBid(ctx context.Context, bidID, sellerID int) error { return nil }

func (m *MockStorage) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	return &models.Product{ID: id, Name: "Cement bag 50kg", SellerID: 2, Price: 9500}, nil
}

func (m *MockStorage) GetProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return []models.Product{{ID: 1, Name: "Cement bag 50kg", SellerID: 2, Price: 9500}}, nil
}

func (m *MockStorage) GetOrCreateActiveCart(ctx context.Context, userID int) (*models.Cart, error) {
	return &models.Cart{ID: 10, UserID: userID}, nil
}

func (m *MockStorage) GetCartItems(ctx context.Context, cartID int) ([]models.CartItem, error) {
	return []models.CartItem{
		{ID: 1, CartID: cartID, ProductID: 1, SellerID: 2, UnitPrice: 9500, Quantity: 2},
	}, nil
}

func (m *MockStorage) AddCartItem(ctx context.Context, item *models.CartItem) error {
	item.ID = 1
	return nil
}

func (m *MockStorage) UpdateCartItemQuantity(ctx context.Context, cartID, itemID, quantity int) error {
	return nil
}

func (m *MockStorage) RemoveCartItem(ctx context.Context, cartID, itemID int) error { return nil }

func (m *MockStorage) PlaceOrder(ctx context.Context, cartID, userID int, paymentRef string) (*models.Order, error) {
	if m.PlaceOrderFunc != nil {
		return m.PlaceOrderFunc(ctx, cartID, userID, paymentRef)
	}
	return &models.Order{ID: 100, CartID: cartID, UserID: userID, Total: 19000, Status: models.OrderStatusPlaced, PaymentRef: paymentRef}, nil
}

func (m *MockStorage) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return &models.Order{
		ID: id, CartID: 10, UserID: 1, Total: 10000, Status: models.OrderStatusPlaced,
		Lines: []models.OrderLine{
			{OrderID: id, ProductID: 1, SellerID: 2, UnitPrice: 2500, Quantity: 2, LineTotal: 5000},
			{OrderID: id, ProductID: 2, SellerID: 3, UnitPrice: 5000, Quantity: 1, LineTotal: 5000},
		},
	}, nil
}

func (m *MockStorage) GetUserOrders(ctx context.Context, userID, limit, offset int, sortField, sortOrder string) ([]models.Order, error) {
	return []models.Order{{ID: 100, UserID: userID, Total: 19000, Status: models.OrderStatusPlaced}}, nil
}

func (m *MockStorage) UpdateOrderStatus(ctx context.Context, orderID int, from, to string) error {
	return nil
}

func (m *MockStorage) SetOrderPaymentRef(ctx context.Context, orderID int, paymentRef string) error {
	return nil
}

func (m *MockStorage) GetSellerSubaccounts(ctx context.Context, sellerIDs []int) (map[int]string, error) {
	out := map[int]string{}
	for _, id := range sellerIDs {
		out[id] = "SUB-TEST"
	}
	return out, nil
}

func (m *MockStorage) InsertSplitRows(ctx context.Context, rows []models.SplitCalculation) error {
	m.insertedSplits = append(m.insertedSplits, rows...)
	return nil
}

func (m *MockStorage) GetSplitsForOrder(ctx context.Context, orderID int) ([]models.SplitCalculation, error) {
	if m.GetSplitsFunc != nil {
		return m.GetSplitsFunc(ctx, orderID)
	}
	return m.insertedSplits, nil
}

func (m *MockStorage) GetSplit(ctx context.Context, id int) (*models.SplitCalculation, error) {
	return &models.SplitCalculation{ID: id, OrderID: 100, SellerID: 2, Gross: 5000, Commission: 500, Net: 4500, Checked: true}, nil
}

func (m *MockStorage) CheckSplit(ctx context.Context, id int) (bool, error) {
	if m.CheckSplitFunc != nil {
		return m.CheckSplitFunc(ctx, id)
	}
	return false, nil
}

func (m *MockStorage) TotalPlatformCommission(ctx context.Context) (int64, error) { return 1000, nil }
func (m *MockStorage) TotalGross(ctx context.Context) (int64, error)              { return 10000, nil }

func (m *MockStorage) UpsertBOQ(ctx context.Context, doc *models.BillOfQuantities, items []models.BOQItem) error {
	doc.ID = 1
	doc.Items = items
	m.upsertedBOQ = doc
	return nil
}

func (m *MockStorage) GetBOQ(ctx context.Context, projectID int) (*models.BillOfQuantities, error) {
	if m.upsertedBOQ != nil {
		return m.upsertedBOQ, nil
	}
	return nil, db.ErrNotFound
}

// fakeGateway returns a fixed session without going anywhere.
type fakeGateway struct {
	calls int
	err   error
}

func (g *fakeGateway) InitiateSplitPayment(ctx context.Context, req payment.InitiateRequest) (*payment.Session, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Session{PaymentURL: "https://pay.example/" + req.OrderRef, TxRef: "tx-1"}, nil
}

type memCache struct{ m map[string]*payment.Session }

func newMemCache() *memCache { return &memCache{m: map[string]*payment.Session{}} }

func (c *memCache) GetSession(ctx context.Context, key string) (*payment.Session, error) {
	return c.m[key], nil
}

func (c *memCache) SetSession(ctx context.Context, key string, s *payment.Session) error {
	c.m[key] = s
	return nil
}

func newTestHandler(t *testing.T, ms *MockStorage) *handlers.Handler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := &config.Config{
		PlatformCommissionBps:  1000,
		IdempotencyKeyStrategy: config.KeyStrategyOrder,
	}
	coordinator := settlement.NewCoordinator(ms, &fakeGateway{}, newMemCache(), cfg, logger)
	generator := boq.NewGenerator(ms, t.TempDir(), logger)
	return handlers.NewHandler(ms, coordinator, generator, true, logger)
}

func authed(req *http.Request, userID int) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func TestCreateBidHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	reqBody := `{"projectId": 1, "amount": 9000, "message": "can start monday"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.CreateBidHandler(w, authed(req, 2))

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"Pending"`)
}

func TestCreateBidHandlerRejectsNonPositiveAmount(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(`{"projectId": 1, "amount": 0}`))
	w := httptest.NewRecorder()

	handler.CreateBidHandler(w, authed(req, 2))

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestCreateBidHandlerUnauthenticated(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(`{"projectId": 1, "amount": 9000}`))
	w := httptest.NewRecorder()

	handler.CreateBidHandler(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestCreateBidHandlerDuplicate(t *testing.T) {
	ms := &MockStorage{
		SubmitBidFunc: func(ctx context.Context, b *models.Bid, allowRebid bool) error {
			return db.ErrDuplicateActiveBid
		},
	}
	handler := newTestHandler(t, ms)

	req := httptest.NewRequest(http.MethodPost, "/api/bids/new", strings.NewReader(`{"projectId": 1, "amount": 9000}`))
	w := httptest.NewRecorder()

	handler.CreateBidHandler(w, authed(req, 2))

	require.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestAcceptBidHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPut, "/api/bids/1/accept", strings.NewReader(`{"finalAmount": 9000}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": "1"})
	w := httptest.NewRecorder()

	handler.AcceptBidHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"Accepted"`)
}

func TestAcceptBidHandlerForbiddenForNonOwner(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPut, "/api/bids/1/accept", strings.NewReader(`{}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": "1"})
	w := httptest.NewRecorder()

	// Project owner in the mock is user 1.
	handler.AcceptBidHandler(w, authed(req, 99))

	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)
}

func TestAcceptBidHandlerProjectClosed(t *testing.T) {
	ms := &MockStorage{
		AcceptBidFunc: func(ctx context.Context, bidID int, finalAmount int64) (*models.Bid, error) {
			return nil, db.ErrProjectNotOpen
		},
	}
	handler := newTestHandler(t, ms)

	req := httptest.NewRequest(http.MethodPut, "/api/bids/1/accept", strings.NewReader(`{}`))
	req = testutils.WithChiURLParams(req, map[string]string{"bidId": "1"})
	w := httptest.NewRecorder()

	handler.AcceptBidHandler(w, authed(req, 1))

	require.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestCheckoutHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.CheckoutHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"Placed"`)
}

func TestCheckoutHandlerCartAlreadyOrdered(t *testing.T) {
	ms := &MockStorage{
		PlaceOrderFunc: func(ctx context.Context, cartID, userID int, paymentRef string) (*models.Order, error) {
			return nil, db.ErrCartAlreadyOrdered
		},
	}
	handler := newTestHandler(t, ms)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.CheckoutHandler(w, authed(req, 1))

	require.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestGetUserOrdersHandlerRejectsUnknownSort(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/my?sort=payment_ref", nil)
	w := httptest.NewRecorder()

	handler.GetUserOrdersHandler(w, authed(req, 1))

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestGetUserOrdersHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/my?sort=total&order=asc", nil)
	w := httptest.NewRecorder()

	handler.GetUserOrdersHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"total":19000`)
}

func TestAddCartItemHandlerSnapshotsCatalog(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"productId": 1, "quantity": 3}`))
	w := httptest.NewRecorder()

	handler.AddCartItemHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	// Price and seller come from the catalog, not the request.
	require.Contains(t, string(body), `"unitPrice":9500`)
	require.Contains(t, string(body), `"sellerId":2`)
}

func TestUpdateCartItemHandlerRejectsZeroQuantity(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPatch, "/api/cart/items/1", strings.NewReader(`{"quantity": 0}`))
	req = testutils.WithChiURLParams(req, map[string]string{"itemId": "1"})
	w := httptest.NewRecorder()

	handler.UpdateCartItemHandler(w, authed(req, 1))

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestInitiateSettlementHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/100/settle", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"orderId": "100"})
	w := httptest.NewRecorder()

	handler.InitiateSettlementHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "paymentUrl")
	require.Contains(t, string(body), `"grossAmount":5000`)
}

func TestInitiateSettlementHandlerForbidden(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/100/settle", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"orderId": "100"})
	w := httptest.NewRecorder()

	handler.InitiateSettlementHandler(w, authed(req, 42))

	require.Equal(t, http.StatusForbidden, w.Result().StatusCode)
}

func TestCheckSplitHandler(t *testing.T) {
	ms := &MockStorage{
		GetSplitsFunc: func(ctx context.Context, orderID int) ([]models.SplitCalculation, error) {
			return []models.SplitCalculation{
				{ID: 1, OrderID: orderID, SellerID: 2, Checked: true},
				{ID: 2, OrderID: orderID, SellerID: 3, Checked: true},
			}, nil
		},
	}
	handler := newTestHandler(t, ms)

	req := httptest.NewRequest(http.MethodPut, "/api/splits/1/check", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"splitId": "1"})
	w := httptest.NewRecorder()

	handler.CheckSplitHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"checked":true`)
}

func TestGetSplitsSummaryHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/splits/summary", nil)
	w := httptest.NewRecorder()

	handler.GetSplitsSummaryHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"totalPlatformCommission":1000`)
	require.Contains(t, string(body), `"totalGross":10000`)
}

func TestGenerateBOQHandler(t *testing.T) {
	ms := &MockStorage{
		EstimationItems: []models.EstimationItem{
			{ID: 1, Description: "Excavation", Unit: "m3", Quantity: 120, UnitPrice: 4500},
			{ID: 2, Description: "Foundation concrete", Unit: "m3", Quantity: 45, UnitPrice: 14500},
		},
	}
	handler := newTestHandler(t, ms)

	req := httptest.NewRequest(http.MethodPost, "/api/boq/1/generate", strings.NewReader(`{"companyName": "BuildCo"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"projectId": "1"})
	w := httptest.NewRecorder()

	handler.GenerateBOQHandler(w, authed(req, 1))

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"totalAmount":1192500`)
	require.NotNil(t, ms.upsertedBOQ)
	require.Len(t, ms.upsertedBOQ.Items, 2)
}

func TestGenerateBOQHandlerNoEstimation(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodPost, "/api/boq/1/generate", strings.NewReader(`{"companyName": "BuildCo"}`))
	req = testutils.WithChiURLParams(req, map[string]string{"projectId": "1"})
	w := httptest.NewRecorder()

	handler.GenerateBOQHandler(w, authed(req, 1))

	require.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestGetProjectsHandler(t *testing.T) {
	handler := newTestHandler(t, &MockStorage{})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()

	handler.GetProjectsHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "Warehouse refit")
}
