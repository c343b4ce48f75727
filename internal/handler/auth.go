package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/auth"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the authenticated caller. It panics when called on
// a route without the authenticate middleware.
func principalFrom(ctx context.Context) auth.Principal {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	if !ok {
		panic("handler: route is missing authentication")
	}
	return p
}

// authenticate resolves the bearer access token into a principal.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := h.accounts.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			fail(w, r, err)
			return
		}
		p := a.Principal()
		ctx := withPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.String("user_type", string(p.Role)), zap.Int64("user_id", p.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require rejects principals outside roles.
func (h *Handler) require(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !principalFrom(r.Context()).Is(roles...) {
				failStatus(w, http.StatusForbidden, "You don't have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Request types ---

type registerRequest struct {
	Type     string `json:"type" validate:"required,oneof=admin customer cafe restaurant"`
	FullName string `json:"fullName" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Type     string `json:"type" validate:"required,oneof=admin customer cafe restaurant"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type deleteFilesRequest struct {
	Keys  []string `json:"keys" validate:"required,min=1,max=1000,dive,required"`
	Quiet bool     `json:"quiet"`
}

// --- Handlers ---

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	tokens, err := h.accounts.Register(r.Context(), account.RegisterRequest{
		Role:     auth.Role(req.Type),
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "User created successfully", tokens)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	tokens, err := h.accounts.Login(r.Context(), account.LoginRequest{
		Role:     auth.Role(req.Type),
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Logged in successfully", tokens)
}

// RefreshToken handles POST /api/auth/refresh-token.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.accounts.Refresh(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Token refreshed successfully", map[string]string{"accessToken": token})
}

// Profile handles GET /api/auth/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Profile(r.Context(), principalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile retrieved successfully", toAccountResponse(a))
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), principalFrom(r.Context())); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Logged out successfully", nil)
}

func fileKey(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}

// GetFile handles GET /api/auth/get-file/*.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	url, err := h.files.URL(r.Context(), fileKey(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "File URL generated successfully", map[string]string{"url": url})
}

// DeleteFile handles DELETE /api/auth/delete-file/*.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	key := fileKey(r)
	if err := h.files.Delete(r.Context(), principalFrom(r.Context()), key); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "File deleted successfully", map[string]string{"key": key})
}

// DeleteFiles handles DELETE /api/auth/delete-multi-files.
func (h *Handler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req deleteFilesRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.files.DeleteMany(r.Context(), principalFrom(r.Context()), req.Keys, req.Quiet); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Files deleted successfully", map[string]int{"deleted": len(req.Keys)})
}
