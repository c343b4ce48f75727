package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/pkg/nullable"
)

type addCouponRequest struct {
	Code           string           `json:"code" validate:"required,min=1,max=50"`
	DiscountType   string           `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal  `json:"discountValue" validate:"required,gt=0"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount" validate:"omitempty,gt=0"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount" validate:"omitempty,gte=0"`
	ExpiresAt      *time.Time       `json:"expiresAt"`
	UsageLimit     *int             `json:"usageLimit" validate:"omitempty,gte=1"`
	IsActive       *bool            `json:"isActive"`
}

type updateCouponRequest struct {
	ID             int64                               `json:"id" validate:"required,gt=0"`
	Code           nullable.Value[string]              `json:"code" validate:"omitempty,min=1,max=50"`
	DiscountType   nullable.Value[coupon.DiscountType] `json:"discountType"`
	DiscountValue  nullable.Value[decimal.Decimal]     `json:"discountValue" validate:"omitempty,gt=0"`
	MaxDiscount    nullable.Value[decimal.Decimal]     `json:"maxDiscount" validate:"omitempty,gt=0"`
	MinOrderAmount nullable.Value[decimal.Decimal]     `json:"minOrderAmount" validate:"omitempty,gte=0"`
	ExpiresAt      nullable.Value[time.Time]           `json:"expiresAt"`
	UsageLimit     nullable.Value[int]                 `json:"usageLimit" validate:"omitempty,gte=1"`
	IsActive       nullable.Value[bool]                `json:"isActive"`
}

type couponListResponse struct {
	Coupons    []couponResponse `json:"coupons"`
	Pagination pagination.Info  `json:"pagination"`
}

// AddCoupon handles POST /api/coupon/add-coupon.
func (h *Handler) AddCoupon(w http.ResponseWriter, r *http.Request) {
	var req addCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c := &coupon.Coupon{
		Code:           strings.TrimSpace(req.Code),
		DiscountType:   coupon.DiscountType(req.DiscountType),
		DiscountValue:  req.DiscountValue,
		MaxDiscount:    req.MaxDiscount,
		MinOrderAmount: req.MinOrderAmount,
		ExpiresAt:      req.ExpiresAt,
		UsageLimit:     req.UsageLimit,
		IsActive:       true,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := h.coupons.Add(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Coupon created successfully", toCouponResponse(c))
}

// GetCoupon handles GET /api/coupon/get-coupon/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.coupons.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Coupon retrieved successfully", toCouponResponse(c))
}

// ListCoupons handles GET /api/coupon/get-coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	page := pageParams(r)
	list, total, err := h.coupons.List(r.Context(), page)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Coupons retrieved successfully", couponListResponse{
		Coupons:    mapSlice(list, toCouponResponse),
		Pagination: pagination.NewInfo(page, total),
	})
}

// UpdateCoupon handles PATCH /api/coupon/update-coupon.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req updateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	for _, c := range []struct {
		name string
		null bool
	}{
		{"code", req.Code.Null},
		{"discountType", req.DiscountType.Null},
		{"discountValue", req.DiscountValue.Null},
		{"isActive", req.IsActive.Null},
	} {
		if c.null {
			fail(w, r, badRequest(c.name+": cannot be null"))
			return
		}
	}

	c, err := h.coupons.Update(r.Context(), req.ID, coupon.Patch{
		Code:           req.Code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MaxDiscount:    req.MaxDiscount,
		MinOrderAmount: req.MinOrderAmount,
		ExpiresAt:      req.ExpiresAt,
		UsageLimit:     req.UsageLimit,
		IsActive:       req.IsActive,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Coupon updated successfully", toCouponResponse(c))
}

// DeleteCoupon handles DELETE /api/coupon/delete-coupon/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.coupons.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Coupon deleted successfully", map[string]int64{"deletedCouponId": id})
}
