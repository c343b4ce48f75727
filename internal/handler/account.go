package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/file"
)

type updateBasicInfoRequest struct {
	FullName       *string         `json:"fullName" validate:"omitempty,min=3,max=50"`
	Age            *int            `json:"age" validate:"omitempty,gte=1,lte=150"`
	Gender         *account.Gender `json:"gender" validate:"omitempty,oneof=male female"`
	Email          *string         `json:"email" validate:"omitempty,email"`
	TelegramChatID *int64          `json:"telegramChatId"`
}

type deleteAccountRequest struct {
	AccountID   int64  `json:"accountId" validate:"required,gt=0"`
	AccountType string `json:"accountType" validate:"required,oneof=admin customer cafe restaurant"`
}

var updatedMessages = map[auth.Role]string{
	auth.RoleAdmin:      "Admin updated successfully",
	auth.RoleCustomer:   "Customer updated successfully",
	auth.RoleCafe:       "Cafe updated successfully",
	auth.RoleRestaurant: "Restaurant updated successfully",
}

// UploadProfileImage handles PATCH /api/{role}/upload-profile-image.
func (h *Handler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, file.MaxImageSize+maxMultipartMemory)
	if err := parseMultipart(r); err != nil {
		fail(w, r, err)
		return
	}
	uploads, closeAll, err := formUploads(r, "profileImage")
	if err != nil {
		fail(w, r, err)
		return
	}
	defer closeAll()
	if len(uploads) != 1 {
		fail(w, r, badRequest("profileImage: exactly one file is required"))
		return
	}

	key, err := h.accounts.UploadProfileImage(r.Context(), principalFrom(r.Context()), uploads[0])
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile image uploaded successfully", map[string]string{"key": key})
}

// UpdateBasicInfo handles PATCH /api/{role}/update-basic-info.
func (h *Handler) UpdateBasicInfo(w http.ResponseWriter, r *http.Request) {
	var req updateBasicInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	p := principalFrom(r.Context())
	a, err := h.accounts.UpdateBasicInfo(r.Context(), p, account.BasicInfo{
		FullName:       req.FullName,
		Age:            req.Age,
		Gender:         req.Gender,
		Email:          req.Email,
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			failStatus(w, http.StatusBadRequest, "Email already exists")
			return
		}
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, updatedMessages[p.Role], toAccountResponse(a))
}

// DeleteAccount handles POST /api/admin/delete-account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), auth.Role(req.AccountType), req.AccountID); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Account deleted successfully", map[string]any{
		"accountId":   req.AccountID,
		"accountType": req.AccountType,
	})
}

func (h *Handler) listVendors(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendors, err := h.accounts.ListVendors(r.Context(), role)
		if err != nil {
			fail(w, r, err)
			return
		}
		respond(w, http.StatusOK, "Vendors retrieved successfully", mapSlice(vendors, toAccountResponse))
	}
}
