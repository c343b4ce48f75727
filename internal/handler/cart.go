package handler

import (
	"net/http"
)

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity" validate:"omitempty,gte=1"`
}

type updateCartItemRequest struct {
	CartItemID int64 `json:"cart_item_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gte=1"`
}

// AddCartItem handles POST /api/cart/add-item.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	customer := principalFrom(r.Context())
	it, created, err := h.carts.AddItem(r.Context(), customer.ID, req.ProductID, qty)
	if err != nil {
		fail(w, r, err)
		return
	}
	if created {
		respond(w, http.StatusCreated, "Item added to cart successfully", toCartItemResponse(it))
		return
	}
	respond(w, http.StatusOK, "Cart item quantity updated", toCartItemResponse(it))
}

// GetCart handles GET /api/cart/get-cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.Get(r.Context(), principalFrom(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	msg := "Cart retrieved successfully"
	if v.Cart == nil {
		msg = "Cart is empty"
	}
	respond(w, http.StatusOK, msg, toCartViewResponse(v))
}

// UpdateCartItem handles PATCH /api/cart/update-item.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	it, err := h.carts.UpdateItem(r.Context(), principalFrom(r.Context()).ID, req.CartItemID, req.Quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Cart item updated successfully", toCartItemResponse(it))
}

// DeleteCartItem handles DELETE /api/cart/delete-item/{cart_item_id}.
func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_item_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.carts.DeleteItem(r.Context(), principalFrom(r.Context()).ID, id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Cart item removed successfully", map[string]int64{"deletedCartItemId": id})
}

// ClearCart handles DELETE /api/cart/clear.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), principalFrom(r.Context()).ID); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Cart cleared successfully", nil)
}
