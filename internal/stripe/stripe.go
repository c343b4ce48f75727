// Package stripe implements payment.Gateway with Stripe Checkout.
package stripe

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/xenking/buzzer/internal/domain/payment"
)

// Config holds Stripe credentials and checkout settings.
type Config struct {
	SecretKey     string `default:"" usage:"Stripe secret API key"`
	WebhookSecret string `default:"" usage:"Stripe webhook signing secret"`
	Currency      string `default:"usd" usage:"checkout currency"`
	SuccessURL    string `default:"http://localhost:3000/payment/success" usage:"redirect after a successful checkout"`
	CancelURL     string `default:"http://localhost:3000/payment/cancel" usage:"redirect after a cancelled checkout"`
}

var _ payment.Gateway = (*Gateway)(nil)

// Gateway talks to the Stripe API.
type Gateway struct {
	api *client.API
	cfg Config
}

// New returns a Gateway authenticated with cfg.SecretKey.
func New(cfg Config) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Gateway{api: api, cfg: cfg}, nil
}

// CreateCheckout opens a hosted checkout session. A positive discount is
// attached as a one-off amount coupon.
func (g *Gateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.cfg.SuccessURL),
		CancelURL:  stripe.String(g.cfg.CancelURL),
		Metadata:   req.Metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	if req.Discount > 0 {
		c, err := g.api.Coupons.New(&stripe.CouponParams{
			Params:    stripe.Params{Context: ctx},
			AmountOff: stripe.Int64(req.Discount),
			Currency:  stripe.String(g.cfg.Currency),
			Duration:  stripe.String(string(stripe.CouponDurationOnce)),
		})
		if err != nil {
			return nil, errors.Wrap(err, "create stripe coupon")
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(c.ID)}}
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}
	return &payment.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// Refund refunds a payment intent in full.
func (g *Gateway) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	r, err := g.api.Refunds.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(paymentIntentID),
	})
	if err != nil {
		return "", errors.Wrapf(err, "refund payment intent %s", paymentIntentID)
	}
	return r.ID, nil
}

// ParseWebhook verifies the signature header and decodes the event.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	return parseWebhook(payload, signature, g.cfg.WebhookSecret)
}

func parseWebhook(payload []byte, signature, secret string) (*payment.WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(payment.ErrInvalidSignature, err.Error())
	}

	out := &payment.WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != payment.EventCheckoutCompleted {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode checkout session")
	}
	out.Session = &payment.CompletedSession{
		ID:          s.ID,
		AmountTotal: s.AmountTotal,
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.Session.PaymentIntentID = s.PaymentIntent.ID
	}
	return out, nil
}
