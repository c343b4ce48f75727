package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/payment"
)

// maxWebhookBody is the payload limit Stripe documents for webhook events.
const maxWebhookBody = 65536

type payRequest struct {
	CouponCode *string `json:"couponCode" validate:"omitempty,max=50"`
}

type refundRequest struct {
	PaymentID int64 `json:"paymentId" validate:"required,gt=0"`
}

type checkoutResponse struct {
	CheckoutSession *payment.CheckoutSession `json:"checkoutSession"`
	PaymentID       int64                    `json:"paymentId"`
	Amount          string                   `json:"amount"`
}

// PayWithStripe handles POST /api/payment/pay-with-stripe.
func (h *Handler) PayWithStripe(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	code := ""
	if req.CouponCode != nil {
		code = *req.CouponCode
	}
	res, err := h.payments.Checkout(r.Context(), principalFrom(r.Context()).ID, code)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Checkout session created successfully", checkoutResponse{
		CheckoutSession: res.Session,
		PaymentID:       res.PaymentID,
		Amount:          money(res.Amount),
	})
}

// StripeWebhook handles POST /api/payment/web-hook-with-stripe. The raw
// body is required for signature verification.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		fail(w, r, badRequest("Invalid request body"))
		return
	}
	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			failStatus(w, http.StatusBadRequest, "Webhook Error: invalid signature")
			return
		}
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Webhook received", map[string]bool{"received": true})
}

// RefundWithStripe handles POST /api/payment/refund-with-stripe.
func (h *Handler) RefundWithStripe(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.payments.Refund(r.Context(), principalFrom(r.Context()).ID, req.PaymentID)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Payment refunded successfully", toPaymentResponse(p))
}
