package handler

import (
	"net/http"

	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/pagination"
)

type addOrderRequest struct {
	CouponCode *string `json:"couponCode" validate:"omitempty,max=50"`
	AddressID  *int64  `json:"address_id" validate:"omitempty,gt=0"`
	Notes      *string `json:"notes" validate:"omitempty,max=500"`
}

type updateOrderRequest struct {
	OrderID int64  `json:"order_id" validate:"required,gt=0"`
	Status  string `json:"status" validate:"required,oneof=pending paid cancelled refunded"`
}

type placeOrderResponse struct {
	Order          orderResponse `json:"order"`
	Subtotal       string        `json:"subtotal"`
	DiscountAmount string        `json:"discountAmount"`
	TotalAmount    string        `json:"totalAmount"`
	ItemsCount     int           `json:"itemsCount"`
	CouponApplied  *string       `json:"couponApplied"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	Pagination pagination.Info `json:"pagination"`
}

// AddOrder handles POST /api/order/add-order.
func (h *Handler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req addOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	placeReq := order.PlaceOrderRequest{
		CustomerID: principalFrom(r.Context()).ID,
		AddressID:  req.AddressID,
		Notes:      req.Notes,
	}
	if req.CouponCode != nil {
		placeReq.CouponCode = *req.CouponCode
	}

	res, err := h.orders.PlaceOrder(r.Context(), placeReq)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Order placed successfully", placeOrderResponse{
		Order:          toOrderResponse(res.Order),
		Subtotal:       money(res.Order.Subtotal),
		DiscountAmount: money(res.Order.DiscountAmount),
		TotalAmount:    money(res.Order.TotalAmount),
		ItemsCount:     res.ItemsCount,
		CouponApplied:  res.CouponApplied,
	})
}

// GetOrder handles GET /api/order/get-order/{order_id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order retrieved successfully", toOrderResponse(o))
}

// ListOrders handles GET /api/order/get-orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *order.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := order.Status(s)
		if !st.Valid() {
			fail(w, r, badRequest("status: must be one of: pending, paid, cancelled, refunded"))
			return
		}
		status = &st
	}

	list, info, err := h.orders.List(r.Context(), principalFrom(r.Context()), status, pageParams(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Orders retrieved successfully", orderListResponse{
		Orders:     mapSlice(list, toOrderResponse),
		Pagination: info,
	})
}

// UpdateOrder handles PATCH /api/order/update-order.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), principalFrom(r.Context()), req.OrderID, order.Status(req.Status))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order status updated successfully", toOrderResponse(o))
}

// CancelOrder handles DELETE /api/order/delete-order/{order_id}.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Order cancelled successfully", toOrderResponse(o))
}
