package handler

import (
	"net/http"

	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/pkg/nullable"
)

type addAddressRequest struct {
	Label     *string `json:"label" validate:"omitempty,max=50"`
	City      string  `json:"city" validate:"required,min=1,max=100"`
	Area      *string `json:"area" validate:"omitempty,max=100"`
	Street    *string `json:"street" validate:"omitempty,max=255"`
	Building  *string `json:"building" validate:"omitempty,max=100"`
	Floor     *string `json:"floor" validate:"omitempty,max=50"`
	Apartment *string `json:"apartment" validate:"omitempty,max=50"`
	IsDefault bool    `json:"isDefault"`
}

type updateAddressRequest struct {
	ID        int64                  `json:"id" validate:"required,gt=0"`
	Label     nullable.Value[string] `json:"label" validate:"omitempty,max=50"`
	City      nullable.Value[string] `json:"city" validate:"omitempty,min=1,max=100"`
	Area      nullable.Value[string] `json:"area" validate:"omitempty,max=100"`
	Street    nullable.Value[string] `json:"street" validate:"omitempty,max=255"`
	Building  nullable.Value[string] `json:"building" validate:"omitempty,max=100"`
	Floor     nullable.Value[string] `json:"floor" validate:"omitempty,max=50"`
	Apartment nullable.Value[string] `json:"apartment" validate:"omitempty,max=50"`
	IsDefault nullable.Value[bool]   `json:"isDefault"`
}

// AddAddress handles POST /api/address/add-address.
func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var req addAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a := &address.Address{
		Owner:     principalFrom(r.Context()),
		Label:     req.Label,
		City:      req.City,
		Area:      req.Area,
		Street:    req.Street,
		Building:  req.Building,
		Floor:     req.Floor,
		Apartment: req.Apartment,
		IsDefault: req.IsDefault,
	}
	if err := h.addresses.Add(r.Context(), a); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Address created successfully", toAddressResponse(a))
}

// GetAddress handles GET /api/address/get-address/{id}.
func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.addresses.Get(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Address retrieved successfully", toAddressResponse(a))
}

// ListAddresses handles GET /api/address/get-all-addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.List(r.Context(), principalFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Addresses retrieved successfully", mapSlice(list, toAddressResponse))
}

// UpdateAddress handles PATCH /api/address/update-address.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req updateAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.City.Set && req.City.Null {
		fail(w, r, badRequest("city: cannot be null"))
		return
	}
	a, err := h.addresses.Update(r.Context(), principalFrom(r.Context()), req.ID, address.Patch{
		Label:     req.Label,
		City:      req.City,
		Area:      req.Area,
		Street:    req.Street,
		Building:  req.Building,
		Floor:     req.Floor,
		Apartment: req.Apartment,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Address updated successfully", toAddressResponse(a))
}

// DeleteAddress handles DELETE /api/address/delete-address/{id}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.addresses.Delete(r.Context(), principalFrom(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Address deleted successfully", map[string]int64{"deletedAddressId": id})
}

// SetDefaultAddress handles PATCH /api/address/set-default-address/{id}.
func (h *Handler) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.addresses.SetDefault(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Default address set successfully", toAddressResponse(a))
}
