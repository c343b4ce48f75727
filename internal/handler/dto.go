package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/payment"
	"github.com/xenking/buzzer/internal/domain/product"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

// --- Response types ---

type accountResponse struct {
	ID             int64           `json:"id"`
	Type           auth.Role       `json:"type"`
	FullName       string          `json:"fullName"`
	Email          *string         `json:"email"`
	Phone          string          `json:"phone"`
	Age            *int            `json:"age"`
	Gender         *account.Gender `json:"gender"`
	ProfileImage   *string         `json:"profileImage"`
	TelegramChatID *int64          `json:"telegramChatId,omitempty"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Type:           a.Role,
		FullName:       a.FullName,
		Email:          a.Email,
		Phone:          a.Phone,
		Age:            a.Age,
		Gender:         a.Gender,
		ProfileImage:   a.ProfileImage,
		TelegramChatID: a.TelegramChatID,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type addressResponse struct {
	ID        int64     `json:"id"`
	UserType  auth.Role `json:"userType"`
	UserID    int64     `json:"userId"`
	Label     *string   `json:"label"`
	City      string    `json:"city"`
	Area      *string   `json:"area"`
	Street    *string   `json:"street"`
	Building  *string   `json:"building"`
	Floor     *string   `json:"floor"`
	Apartment *string   `json:"apartment"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toAddressResponse(a *address.Address) addressResponse {
	return addressResponse{
		ID:        a.ID,
		UserType:  a.Owner.Role,
		UserID:    a.Owner.ID,
		Label:     a.Label,
		City:      a.City,
		Area:      a.Area,
		Street:    a.Street,
		Building:  a.Building,
		Floor:     a.Floor,
		Apartment: a.Apartment,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type categoryResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCategoryResponse(c *category.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type productResponse struct {
	ID                int64     `json:"id"`
	CategoryID        *int64    `json:"categoryId"`
	VendorType        auth.Role `json:"vendorType"`
	VendorID          int64     `json:"vendorId"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	Price             string    `json:"price"`
	IsAvailable       bool      `json:"isAvailable"`
	AvailableQuantity int       `json:"availableQuantity"`
	Images            []string  `json:"images"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toProductResponse(p *product.Product) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:                p.ID,
		CategoryID:        p.CategoryID,
		VendorType:        p.Vendor.Role,
		VendorID:          p.Vendor.ID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             money(p.Price),
		IsAvailable:       p.IsAvailable,
		AvailableQuantity: p.AvailableQuantity,
		Images:            images,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

type cartResponse struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type cartItemResponse struct {
	ID        int64            `json:"id"`
	CartID    int64            `json:"cartId"`
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *productResponse `json:"product,omitempty"`
	Subtotal  string           `json:"subtotal,omitempty"`
}

func toCartItemResponse(it *cart.Item) cartItemResponse {
	return cartItemResponse{
		ID:        it.ID,
		CartID:    it.CartID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
	}
}

type cartViewResponse struct {
	Cart       *cartResponse      `json:"cart"`
	Items      []cartItemResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	TotalPrice string             `json:"totalPrice"`
}

func toCartViewResponse(v *cart.View) cartViewResponse {
	out := cartViewResponse{
		Items:      make([]cartItemResponse, 0, len(v.Lines)),
		TotalItems: v.TotalItems,
		TotalPrice: money(v.TotalPrice),
	}
	if v.Cart != nil {
		out.Cart = &cartResponse{
			ID:         v.Cart.ID,
			CustomerID: v.Cart.CustomerID,
			CreatedAt:  v.Cart.CreatedAt,
			UpdatedAt:  v.Cart.UpdatedAt,
		}
	}
	for _, l := range v.Lines {
		item := toCartItemResponse(&l.Item)
		p := toProductResponse(&l.Product)
		item.Product = &p
		item.Subtotal = money(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		out.Items = append(out.Items, item)
	}
	return out
}

type couponResponse struct {
	ID             int64               `json:"id"`
	Code           string              `json:"code"`
	DiscountType   coupon.DiscountType `json:"discountType"`
	DiscountValue  string              `json:"discountValue"`
	MaxDiscount    *string             `json:"maxDiscount"`
	MinOrderAmount *string             `json:"minOrderAmount"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	UsageLimit     *int                `json:"usageLimit"`
	UsedCount      int                 `json:"usedCount"`
	IsActive       bool                `json:"isActive"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	return couponResponse{
		ID:             c.ID,
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountValue:  money(c.DiscountValue),
		MaxDiscount:    moneyPtr(c.MaxDiscount),
		MinOrderAmount: moneyPtr(c.MinOrderAmount),
		ExpiresAt:      c.ExpiresAt,
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID         int64     `json:"id"`
	ProductID  *int64    `json:"productId"`
	Name       string    `json:"productName"`
	Price      string    `json:"price"`
	Quantity   int       `json:"quantity"`
	Subtotal   string    `json:"subtotal"`
	VendorType auth.Role `json:"vendorType"`
	VendorID   int64     `json:"vendorId"`
}

type orderResponse struct {
	ID             int64               `json:"id"`
	CustomerID     int64               `json:"customerId"`
	AddressID      *int64              `json:"addressId"`
	PaymentID      *int64              `json:"paymentId"`
	Status         order.Status        `json:"status"`
	Notes          *string             `json:"notes"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discountAmount"`
	TotalAmount    string              `json:"totalAmount"`
	CouponCode     *string             `json:"couponCode"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Name:       it.Name,
			Price:      money(it.Price),
			Quantity:   it.Quantity,
			Subtotal:   money(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))),
			VendorType: it.VendorType,
			VendorID:   it.VendorID,
		}
	}
	return orderResponse{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		AddressID:      o.AddressID,
		PaymentID:      o.PaymentID,
		Status:         o.Status,
		Notes:          o.Notes,
		Subtotal:       money(o.Subtotal),
		DiscountAmount: money(o.DiscountAmount),
		TotalAmount:    money(o.TotalAmount),
		CouponCode:     o.CouponCode,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

type paymentResponse struct {
	ID                int64          `json:"id"`
	CheckoutSessionID string         `json:"checkoutSessionId"`
	PaymentIntentID   *string        `json:"paymentIntentId"`
	RefundID          *string        `json:"refundId"`
	RefundedAt        *time.Time     `json:"refundedAt"`
	Amount            string         `json:"amount"`
	CouponCode        *string        `json:"couponCode"`
	Status            payment.Status `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:                p.ID,
		CheckoutSessionID: p.CheckoutSessionID,
		PaymentIntentID:   p.PaymentIntentID,
		RefundID:          p.RefundID,
		RefundedAt:        p.RefundedAt,
		Amount:            money(p.Amount),
		CouponCode:        p.CouponCode,
		Status:            p.Status,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(*T) R) []R {
	out := make([]R, len(in))
	for i := range in {
		out[i] = fn(&in[i])
	}
	return out
}
