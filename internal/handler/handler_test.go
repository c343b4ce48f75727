package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/payment"
	"github.com/xenking/buzzer/internal/domain/product"
)

// --- Mock implementations ---

type fakeAccounts struct {
	AccountService

	registered account.RegisterRequest
	updateErr  error
}

func (f *fakeAccounts) Authenticate(_ context.Context, header string) (*account.Account, error) {
	switch header {
	case "":
		return nil, auth.ErrMissingToken
	case "Bearer customer":
		return &account.Account{ID: 7, Role: auth.RoleCustomer, IsActive: true}, nil
	case "Bearer cafe":
		return &account.Account{ID: 3, Role: auth.RoleCafe, IsActive: true}, nil
	case "Bearer admin":
		return &account.Account{ID: 1, Role: auth.RoleAdmin, IsActive: true}, nil
	}
	return nil, auth.ErrInvalidBearer
}

func (f *fakeAccounts) Register(_ context.Context, req account.RegisterRequest) (auth.TokenPair, error) {
	f.registered = req
	return auth.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAccounts) Login(_ context.Context, req account.LoginRequest) (auth.TokenPair, error) {
	if req.Password != "secret123" {
		return auth.TokenPair{}, account.ErrInvalidCredentials
	}
	return auth.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAccounts) UpdateBasicInfo(_ context.Context, p auth.Principal, info account.BasicInfo) (*account.Account, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &account.Account{ID: p.ID, Role: p.Role, FullName: *info.FullName}, nil
}

type fakeCarts struct {
	CartService

	view    *cart.View
	created bool
	addErr  error
	lastQty int
}

func (f *fakeCarts) AddItem(_ context.Context, customerID, productID int64, qty int) (*cart.Item, bool, error) {
	f.lastQty = qty
	if f.addErr != nil {
		return nil, false, f.addErr
	}
	return &cart.Item{ID: 11, CartID: 5, CustomerID: customerID, ProductID: productID, Quantity: qty}, f.created, nil
}

func (f *fakeCarts) Get(context.Context, int64) (*cart.View, error) {
	return f.view, nil
}

type fakeOrders struct {
	OrderService

	placeErr  error
	cancelErr error
	listInfo  pagination.Info
	status    *order.Status
}

func (f *fakeOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	code := req.CouponCode
	return &order.PlaceOrderResult{
		Order: &order.Order{
			ID:             42,
			CustomerID:     req.CustomerID,
			Status:         order.StatusPending,
			Subtotal:       decimal.NewFromInt(30),
			DiscountAmount: decimal.RequireFromString("4.5"),
			TotalAmount:    decimal.RequireFromString("25.5"),
			Items: []order.Item{{
				ID: 1, Name: "Latte", Price: decimal.NewFromInt(10), Quantity: 3,
				VendorType: auth.RoleCafe, VendorID: 3,
			}},
		},
		ItemsCount:    3,
		CouponApplied: &code,
	}, nil
}

func (f *fakeOrders) List(_ context.Context, _ auth.Principal, status *order.Status, _ pagination.Params) ([]order.Order, pagination.Info, error) {
	f.status = status
	return []order.Order{}, f.listInfo, nil
}

func (f *fakeOrders) Cancel(context.Context, auth.Principal, int64) (*order.Order, error) {
	return nil, f.cancelErr
}

type fakeProducts struct {
	ProductService

	added  *product.Product
	images []file.Upload
	filter product.Filter
}

func (f *fakeProducts) Add(_ context.Context, vendor auth.Principal, p *product.Product, images []file.Upload) error {
	p.ID = 9
	p.Vendor = vendor
	f.added = p
	f.images = images
	return nil
}

func (f *fakeProducts) List(_ context.Context, fl product.Filter) ([]product.Product, int, error) {
	f.filter = fl
	return []product.Product{{ID: 1, Name: "Tea", Price: decimal.NewFromInt(2)}}, 21, nil
}

type fakeCoupons struct {
	CouponService

	deleteErr error
}

func (f *fakeCoupons) Delete(context.Context, int64) error { return f.deleteErr }

type fakePayments struct {
	PaymentService

	webhookErr error
}

func (f *fakePayments) HandleWebhook(_ context.Context, payload []byte, sig string) error {
	if sig == "" || len(payload) == 0 {
		return errors.Wrap(payment.ErrInvalidSignature, "no signature")
	}
	return f.webhookErr
}

// --- Helpers ---

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(d Deps) http.Handler {
	if d.Accounts == nil {
		d.Accounts = &fakeAccounts{}
	}
	r := chi.NewRouter()
	New(d).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	return do(t, h, method, path, token, strings.NewReader(body), "application/json")
}

// --- Tests ---

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"sentinel capitalized", account.ErrNotFound, http.StatusNotFound, "User not found"},
		{"wrapped sentinel", errors.Wrap(coupon.ErrCodeTaken, "create"), http.StatusConflict, "Coupon code already exists"},
		{"coupon in use", coupon.ErrInUse, http.StatusConflict, "Cannot delete coupon that has been used in orders"},
		{"override message", cart.ErrEmpty, http.StatusBadRequest, "Cart is empty. Add items to cart before placing an order"},
		{"stock error", &cart.StockError{Available: 2}, http.StatusBadRequest, "Only 2 items available in stock"},
		{"insufficient stock", &order.InsufficientStockError{Name: "Latte", Available: 1}, http.StatusBadRequest, `Insufficient stock for "Latte". Only 1 available`},
		{"min order", &coupon.MinOrderAmountError{Min: decimal.NewFromInt(50)}, http.StatusBadRequest, "Minimum order amount of 50.00 required to use this coupon"},
		{"payment not found", payment.ErrNotFound, http.StatusNotFound, "Payment not found or you are not authorized"},
		{"request error", badRequest("name: is required"), http.StatusBadRequest, "name: is required"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	h := newRouter(Deps{})

	rec, resp := doJSON(t, h, http.MethodPost, "/api/auth/register", "",
		`{"type":"pilot","fullName":"Al","phone":"+15550001111","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t,
		"type: must be one of: admin, customer, cafe, restaurant; fullName: must be at least 3 characters; password: must be at least 8 characters",
		resp.Message)
}

func TestRegister_Success(t *testing.T) {
	accounts := &fakeAccounts{}
	h := newRouter(Deps{Accounts: accounts})

	rec, resp := doJSON(t, h, http.MethodPost, "/api/auth/register", "",
		`{"type":"customer","fullName":"Alice","phone":"+15550001111","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, auth.RoleCustomer, accounts.registered.Role)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":"r"}`, string(resp.Data))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newRouter(Deps{})

	rec, resp := doJSON(t, h, http.MethodPost, "/api/auth/login", "",
		`{"type":"customer","phone":"+15550001111","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", resp.Message)
}

func TestAuthentication(t *testing.T) {
	h := newRouter(Deps{Carts: &fakeCarts{view: &cart.View{}}})

	tests := []struct {
		name    string
		token   string
		status  int
		message string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header is required"},
		{"bad bearer", "garbage", http.StatusUnauthorized, "Invalid bearer key"},
		{"wrong role", "cafe", http.StatusForbidden, "You don't have permission to access this resource"},
		{"customer", "customer", http.StatusOK, "Cart is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, h, http.MethodGet, "/api/cart/get-cart", tt.token, nil, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestUpdateBasicInfo_EmailTaken(t *testing.T) {
	h := newRouter(Deps{Accounts: &fakeAccounts{updateErr: account.ErrEmailTaken}})

	rec, resp := doJSON(t, h, http.MethodPatch, "/api/customer/update-basic-info", "customer",
		`{"fullName":"Alice","email":"a@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", resp.Message)
}

func TestUpdateBasicInfo_RoleScoped(t *testing.T) {
	h := newRouter(Deps{})

	rec, _ := doJSON(t, h, http.MethodPatch, "/api/cafe/update-basic-info", "customer", `{"fullName":"Alice"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := doJSON(t, h, http.MethodPatch, "/api/customer/update-basic-info", "customer", `{"fullName":"Alice"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Customer updated successfully", resp.Message)
}

func TestGetCart_Empty(t *testing.T) {
	h := newRouter(Deps{Carts: &fakeCarts{view: &cart.View{TotalPrice: decimal.Zero}}})

	rec, resp := do(t, h, http.MethodGet, "/api/cart/get-cart", "customer", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cart":null,"items":[],"totalItems":0,"totalPrice":"0.00"}`, string(resp.Data))
}

func TestAddCartItem(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		carts   *fakeCarts
		status  int
		message string
		qty     int
	}{
		{"new line defaults quantity", `{"product_id":4}`, &fakeCarts{created: true}, http.StatusCreated, "Item added to cart successfully", 1},
		{"merged line", `{"product_id":4,"quantity":2}`, &fakeCarts{}, http.StatusOK, "Cart item quantity updated", 2},
		{"stock overflow", `{"product_id":4,"quantity":5}`, &fakeCarts{addErr: &cart.StockError{Available: 3, Merge: true}},
			http.StatusBadRequest, "Cannot add more items. Only 3 items available in stock", 5},
		{"not available", `{"product_id":4}`, &fakeCarts{addErr: product.ErrNotAvailable}, http.StatusBadRequest, "Product is not available", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(Deps{Carts: tt.carts})
			rec, resp := doJSON(t, h, http.MethodPost, "/api/cart/add-item", "customer", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.qty, tt.carts.lastQty)
		})
	}
}

func TestAddOrder(t *testing.T) {
	h := newRouter(Deps{Orders: &fakeOrders{}})

	rec, resp := doJSON(t, h, http.MethodPost, "/api/order/add-order", "customer", `{"couponCode":"SAVE15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var data placeOrderResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "30.00", data.Subtotal)
	assert.Equal(t, "4.50", data.DiscountAmount)
	assert.Equal(t, "25.50", data.TotalAmount)
	assert.Equal(t, 3, data.ItemsCount)
	assert.Equal(t, "SAVE15", *data.CouponApplied)
	require.Len(t, data.Order.Items, 1)
	assert.Equal(t, "30.00", data.Order.Items[0].Subtotal)
}

func TestAddOrder_CustomerOnly(t *testing.T) {
	h := newRouter(Deps{Orders: &fakeOrders{}})

	rec, _ := doJSON(t, h, http.MethodPost, "/api/order/add-order", "admin", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelOrder_Conflict(t *testing.T) {
	h := newRouter(Deps{Orders: &fakeOrders{
		cancelErr: &order.StatusConflictError{Status: order.StatusPaid, Cancel: true},
	}})

	rec, resp := do(t, h, http.MethodDelete, "/api/order/delete-order/3", "customer", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Cannot cancel order with status "paid". Only pending orders can be cancelled.`, resp.Message)
}

func TestListOrders_Status(t *testing.T) {
	orders := &fakeOrders{listInfo: pagination.Info{CurrentPage: 1, TotalPages: 0, ItemsPerPage: 10}}
	h := newRouter(Deps{Orders: orders})

	rec, _ := do(t, h, http.MethodGet, "/api/order/get-orders?status=shipped", "customer", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := do(t, h, http.MethodGet, "/api/order/get-orders?status=paid", "customer", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, orders.status)
	assert.Equal(t, order.StatusPaid, *orders.status)
	assert.JSONEq(t,
		`{"orders":[],"pagination":{"currentPage":1,"totalPages":0,"totalItems":0,"itemsPerPage":10}}`,
		string(resp.Data))
}

func TestListProducts(t *testing.T) {
	products := &fakeProducts{}
	h := newRouter(Deps{Products: products})

	rec, _ := do(t, h, http.MethodGet, "/api/product/get-products?vendorType=admin", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := do(t, h, http.MethodGet, "/api/product/get-products?categoryId=2&vendorType=cafe&page=3&limit=10", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, products.filter.CategoryID)
	assert.Equal(t, int64(2), *products.filter.CategoryID)
	assert.Equal(t, auth.RoleCafe, *products.filter.VendorType)

	var data productListResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "2.00", data.Products[0].Price)
	assert.Equal(t, pagination.Info{CurrentPage: 3, TotalPages: 3, TotalItems: 21, ItemsPerPage: 10}, data.Pagination)
}

func TestAddProduct_Multipart(t *testing.T) {
	products := &fakeProducts{}
	h := newRouter(Deps{Products: products})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Flat white"))
	require.NoError(t, mw.WriteField("price", "4.20"))
	require.NoError(t, mw.WriteField("availableQuantity", "12"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="productImages"; filename="a.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec, resp := do(t, h, http.MethodPost, "/api/product/add-product", "cafe", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	require.NotNil(t, products.added)
	assert.Equal(t, "Flat white", products.added.Name)
	assert.True(t, products.added.Price.Equal(decimal.RequireFromString("4.2")))
	assert.Equal(t, 12, products.added.AvailableQuantity)
	assert.True(t, products.added.IsAvailable)
	require.Len(t, products.images, 1)
	assert.Equal(t, "image/png", products.images[0].ContentType)
	assert.Equal(t, int64(len("png-bytes")), products.images[0].Size)
}

func TestAddProduct_MissingPrice(t *testing.T) {
	h := newRouter(Deps{Products: &fakeProducts{}})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Flat white"))
	require.NoError(t, mw.Close())

	rec, resp := do(t, h, http.MethodPost, "/api/product/add-product", "cafe", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price: is required", resp.Message)
}

func TestDeleteCoupon_InUse(t *testing.T) {
	h := newRouter(Deps{Coupons: &fakeCoupons{deleteErr: coupon.ErrInUse}})

	rec, resp := do(t, h, http.MethodDelete, "/api/coupon/delete-coupon/5", "admin", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot delete coupon that has been used in orders", resp.Message)
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name   string
		sig    string
		err    error
		status int
	}{
		{"bad signature", "", nil, http.StatusBadRequest},
		{"accepted", "t=1,v1=abc", nil, http.StatusOK},
		{"processing failure is retried", "t=1,v1=abc", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(Deps{Payments: &fakePayments{webhookErr: tt.err}})
			req := httptest.NewRequest(http.MethodPost, "/api/payment/web-hook-with-stripe", strings.NewReader(`{"id":"evt_1"}`))
			if tt.sig != "" {
				req.Header.Set("Stripe-Signature", tt.sig)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestNotFoundRoute(t *testing.T) {
	h := newRouter(Deps{})

	rec, resp := do(t, h, http.MethodGet, "/api/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", resp.Message)
}
