// Package handler exposes the domain services over a JSON HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/payment"
	"github.com/xenking/buzzer/internal/domain/product"
)

// Service interfaces are satisfied by the domain services; narrowed here so
// handlers can be tested against fakes.

type AccountService interface {
	Register(ctx context.Context, req account.RegisterRequest) (auth.TokenPair, error)
	Login(ctx context.Context, req account.LoginRequest) (auth.TokenPair, error)
	Refresh(ctx context.Context, header string) (string, error)
	Authenticate(ctx context.Context, header string) (*account.Account, error)
	Logout(ctx context.Context, p auth.Principal) error
	Profile(ctx context.Context, p auth.Principal) (*account.Account, error)
	UpdateBasicInfo(ctx context.Context, p auth.Principal, info account.BasicInfo) (*account.Account, error)
	UploadProfileImage(ctx context.Context, p auth.Principal, u file.Upload) (string, error)
	DeleteAccount(ctx context.Context, role auth.Role, id int64) error
	ListVendors(ctx context.Context, role auth.Role) ([]account.Account, error)
}

type FileService interface {
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, caller auth.Principal, key string) error
	DeleteMany(ctx context.Context, caller auth.Principal, keys []string, quiet bool) error
}

type AddressService interface {
	Add(ctx context.Context, a *address.Address) error
	Get(ctx context.Context, owner auth.Principal, id int64) (*address.Address, error)
	List(ctx context.Context, owner auth.Principal) ([]address.Address, error)
	Update(ctx context.Context, owner auth.Principal, id int64, patch address.Patch) (*address.Address, error)
	Delete(ctx context.Context, owner auth.Principal, id int64) error
	SetDefault(ctx context.Context, owner auth.Principal, id int64) (*address.Address, error)
}

type CategoryService interface {
	Add(ctx context.Context, c *category.Category) error
	GetByName(ctx context.Context, name string) (*category.Category, error)
	List(ctx context.Context) ([]category.Category, error)
	Update(ctx context.Context, id int64, patch category.Patch) (*category.Category, error)
	Delete(ctx context.Context, id int64) error
}

type ProductService interface {
	Add(ctx context.Context, vendor auth.Principal, p *product.Product, images []file.Upload) error
	Get(ctx context.Context, id int64) (*product.Product, error)
	List(ctx context.Context, f product.Filter) ([]product.Product, int, error)
	Update(ctx context.Context, caller auth.Principal, id int64, patch product.Patch, images []file.Upload) (*product.Product, error)
	Delete(ctx context.Context, caller auth.Principal, id int64) error
}

type CartService interface {
	AddItem(ctx context.Context, customerID, productID int64, qty int) (*cart.Item, bool, error)
	Get(ctx context.Context, customerID int64) (*cart.View, error)
	UpdateItem(ctx context.Context, customerID, itemID int64, qty int) (*cart.Item, error)
	DeleteItem(ctx context.Context, customerID, itemID int64) error
	Clear(ctx context.Context, customerID int64) error
}

type CouponService interface {
	Add(ctx context.Context, c *coupon.Coupon) error
	Get(ctx context.Context, id int64) (*coupon.Coupon, error)
	List(ctx context.Context, p pagination.Params) ([]coupon.Coupon, int, error)
	Update(ctx context.Context, id int64, patch coupon.Patch) (*coupon.Coupon, error)
	Delete(ctx context.Context, id int64) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	Get(ctx context.Context, caller auth.Principal, id int64) (*order.Order, error)
	List(ctx context.Context, caller auth.Principal, status *order.Status, p pagination.Params) ([]order.Order, pagination.Info, error)
	UpdateStatus(ctx context.Context, caller auth.Principal, id int64, status order.Status) (*order.Order, error)
	Cancel(ctx context.Context, caller auth.Principal, id int64) (*order.Order, error)
}

type PaymentService interface {
	Checkout(ctx context.Context, customerID int64, couponCode string) (*payment.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	Refund(ctx context.Context, customerID, paymentID int64) (*payment.Payment, error)
}

// Deps holds the services behind the API.
type Deps struct {
	Accounts   AccountService
	Files      FileService
	Addresses  AddressService
	Categories CategoryService
	Products   ProductService
	Carts      CartService
	Coupons    CouponService
	Orders     OrderService
	Payments   PaymentService
}

// Handler serves the /api routes.
type Handler struct {
	accounts   AccountService
	files      FileService
	addresses  AddressService
	categories CategoryService
	products   ProductService
	carts      CartService
	coupons    CouponService
	orders     OrderService
	payments   PaymentService
}

// New constructs a Handler.
func New(d Deps) *Handler {
	return &Handler{
		accounts:   d.Accounts,
		files:      d.Files,
		addresses:  d.Addresses,
		categories: d.Categories,
		products:   d.Products,
		carts:      d.Carts,
		coupons:    d.Coupons,
		orders:     d.Orders,
		payments:   d.Payments,
	}
}

// profileRoutes lists the roles with a /api/{role} profile surface.
var profileRoutes = []auth.Role{auth.RoleCustomer, auth.RoleCafe, auth.RoleRestaurant, auth.RoleAdmin}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	vendors := h.require(auth.RoleCafe, auth.RoleRestaurant)
	customer := h.require(auth.RoleCustomer)
	admin := h.require(auth.RoleAdmin)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		failStatus(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		failStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/profile", h.Profile)
			r.Post("/logout", h.Logout)
			r.Get("/get-file/*", h.GetFile)
			r.Delete("/delete-file/*", h.DeleteFile)
			r.Delete("/delete-multi-files", h.DeleteFiles)
		})
	})

	for _, role := range profileRoutes {
		r.Route("/api/"+string(role), func(r chi.Router) {
			switch role {
			case auth.RoleCafe:
				r.Get("/all-cafes", h.listVendors(role))
			case auth.RoleRestaurant:
				r.Get("/all-restaurants", h.listVendors(role))
			}
			r.Group(func(r chi.Router) {
				r.Use(h.authenticate, h.require(role))
				r.Patch("/upload-profile-image", h.UploadProfileImage)
				r.Patch("/update-basic-info", h.UpdateBasicInfo)
				if role == auth.RoleAdmin {
					r.Post("/delete-account", h.DeleteAccount)
					r.Post("/add-category", h.AddCategory)
					r.Get("/get-category", h.GetCategory)
					r.Patch("/update-category", h.UpdateCategory)
					r.Delete("/delete-category/{id}", h.DeleteCategory)
				}
			})
		})
	}

	r.Get("/api/category/all-categories", h.ListCategories)

	r.Route("/api/address", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/add-address", h.AddAddress)
		r.Get("/get-address/{id}", h.GetAddress)
		r.Get("/get-all-addresses", h.ListAddresses)
		r.Patch("/update-address", h.UpdateAddress)
		r.Delete("/delete-address/{id}", h.DeleteAddress)
		r.Patch("/set-default-address/{id}", h.SetDefaultAddress)
	})

	r.Route("/api/product", func(r chi.Router) {
		r.Get("/get-product/{id}", h.GetProduct)
		r.Get("/get-products", h.ListProducts)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.With(vendors).Post("/add-product", h.AddProduct)
			r.With(vendors).Patch("/update-product", h.UpdateProduct)
			r.With(h.require(auth.RoleCafe, auth.RoleRestaurant, auth.RoleAdmin)).
				Delete("/delete-product/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(h.authenticate, customer)
		r.Post("/add-item", h.AddCartItem)
		r.Get("/get-cart", h.GetCart)
		r.Patch("/update-item", h.UpdateCartItem)
		r.Delete("/delete-item/{cart_item_id}", h.DeleteCartItem)
		r.Delete("/clear", h.ClearCart)
	})

	r.Route("/api/coupon", func(r chi.Router) {
		r.Use(h.authenticate, admin)
		r.Post("/add-coupon", h.AddCoupon)
		r.Get("/get-coupon/{id}", h.GetCoupon)
		r.Get("/get-coupons", h.ListCoupons)
		r.Patch("/update-coupon", h.UpdateCoupon)
		r.Delete("/delete-coupon/{id}", h.DeleteCoupon)
	})

	r.Route("/api/order", func(r chi.Router) {
		r.Use(h.authenticate)
		r.With(customer).Post("/add-order", h.AddOrder)
		r.Get("/get-order/{order_id}", h.GetOrder)
		r.Get("/get-orders", h.ListOrders)
		r.Patch("/update-order", h.UpdateOrder)
		r.With(customer).Delete("/delete-order/{order_id}", h.CancelOrder)
	})

	r.Route("/api/payment", func(r chi.Router) {
		r.Post("/web-hook-with-stripe", h.StripeWebhook)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate, customer)
			r.Post("/pay-with-stripe", h.PayWithStripe)
			r.Post("/refund-with-stripe", h.RefundWithStripe)
		})
	})
}
