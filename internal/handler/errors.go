package handler

import (
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/file"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/payment"
	"github.com/xenking/buzzer/internal/domain/product"
)

// requestError is a malformed or invalid request payload.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

type errorMapping struct {
	target  error
	status  int
	message string
}

// knownErrors maps domain sentinels to API responses. An empty message
// reuses the sentinel text with its first letter capitalized.
var knownErrors = []errorMapping{
	{account.ErrNotFound, http.StatusNotFound, ""},
	{account.ErrEmailTaken, http.StatusBadRequest, ""},
	{account.ErrPhoneTaken, http.StatusBadRequest, ""},
	{account.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{account.ErrInactive, http.StatusForbidden, ""},
	{account.ErrCredentialsChanged, http.StatusUnauthorized, ""},
	{account.ErrInvalidPhone, http.StatusBadRequest, ""},

	{auth.ErrUnknownRole, http.StatusBadRequest, ""},
	{auth.ErrMissingToken, http.StatusUnauthorized, ""},
	{auth.ErrInvalidBearer, http.StatusUnauthorized, ""},
	{auth.ErrInvalidToken, http.StatusUnauthorized, ""},
	{auth.ErrTokenExpired, http.StatusUnauthorized, ""},

	{address.ErrNotFound, http.StatusNotFound, ""},

	{cart.ErrNotFound, http.StatusNotFound, ""},
	{cart.ErrItemNotFound, http.StatusNotFound, ""},
	{cart.ErrForbidden, http.StatusForbidden, "You don't have permission to modify this cart item"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, ""},
	{cart.ErrEmpty, http.StatusBadRequest, "Cart is empty. Add items to cart before placing an order"},

	{category.ErrNotFound, http.StatusNotFound, ""},
	{category.ErrNameTaken, http.StatusConflict, ""},
	{category.ErrEmptyName, http.StatusBadRequest, ""},

	{coupon.ErrNotFound, http.StatusNotFound, ""},
	{coupon.ErrInactive, http.StatusBadRequest, ""},
	{coupon.ErrExpired, http.StatusBadRequest, ""},
	{coupon.ErrUsageLimitReached, http.StatusBadRequest, ""},
	{coupon.ErrCodeTaken, http.StatusConflict, ""},
	{coupon.ErrInUse, http.StatusConflict, ""},
	{coupon.ErrInvalidCode, http.StatusBadRequest, ""},
	{coupon.ErrInvalidType, http.StatusBadRequest, ""},
	{coupon.ErrInvalidValue, http.StatusBadRequest, ""},
	{coupon.ErrPercentageTooHigh, http.StatusBadRequest, ""},

	{file.ErrForbidden, http.StatusForbidden, ""},
	{file.ErrUnsupportedType, http.StatusBadRequest, ""},
	{file.ErrTooLarge, http.StatusBadRequest, "File is too large. Maximum size is 5MB"},
	{file.ErrEmptyKey, http.StatusBadRequest, ""},
	{file.ErrTooManyKeys, http.StatusBadRequest, ""},

	{order.ErrNotFound, http.StatusNotFound, ""},
	{order.ErrForbidden, http.StatusForbidden, ""},
	{order.ErrInvalidStatus, http.StatusBadRequest, ""},
	{order.ErrNotesTooLong, http.StatusBadRequest, ""},

	{payment.ErrNotFound, http.StatusNotFound, ""},
	{payment.ErrAlreadyRefunded, http.StatusBadRequest, ""},
	{payment.ErrNotCompleted, http.StatusBadRequest, ""},
	{payment.ErrNoPaymentIntent, http.StatusBadRequest, ""},
	{payment.ErrInvalidSignature, http.StatusBadRequest, ""},

	{product.ErrNotFound, http.StatusNotFound, ""},
	{product.ErrForbidden, http.StatusForbidden, "You don't have permission to modify this product"},
	{product.ErrNotVendor, http.StatusForbidden, ""},
	{product.ErrNotAvailable, http.StatusBadRequest, ""},
	{product.ErrOutOfStock, http.StatusBadRequest, ""},
	{product.ErrTooManyImages, http.StatusBadRequest, ""},
	{product.ErrInvalidPrice, http.StatusBadRequest, ""},
	{product.ErrInvalidStock, http.StatusBadRequest, ""},
	{product.ErrEmptyName, http.StatusBadRequest, ""},
}

// classify resolves the status code and client message for err.
func classify(err error) (int, string) {
	var (
		reqErr   *requestError
		stockErr *cart.StockError
		shortErr *order.InsufficientStockError
		stateErr *order.StatusConflictError
		minErr   *coupon.MinOrderAmountError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.As(err, &shortErr):
		return http.StatusBadRequest, shortErr.Error()
	case errors.As(err, &stateErr):
		return http.StatusBadRequest, stateErr.Error()
	case errors.As(err, &minErr):
		return http.StatusBadRequest, minErr.Error()
	}

	for _, m := range knownErrors {
		if errors.Is(err, m.target) {
			if m.message != "" {
				return m.status, m.message
			}
			return m.status, capitalize(m.target.Error())
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
