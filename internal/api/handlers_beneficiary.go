/**
 * @description
 * HTTP handlers for beneficiary management: registering withdrawal
 * destinations, listing them, deleting them, choosing a default, and the
 * admin review endpoints.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vaultpay/ledger-service/internal/domain"
)

// CreateBeneficiaryHandler registers a new withdrawal destination.
func (h *LedgerHandlers) CreateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var body domain.CreateBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	beneficiary, err := h.service.CreateBeneficiary(r.Context(), userID, body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, beneficiary)
}

// ListBeneficiariesHandler returns all of the user's beneficiaries.
func (h *LedgerHandlers) ListBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	beneficiaries, err := h.service.ListBeneficiaries(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if beneficiaries == nil {
		beneficiaries = []domain.Beneficiary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"beneficiaries": beneficiaries})
}

// DeleteBeneficiaryHandler removes one of the user's beneficiaries.
func (h *LedgerHandlers) DeleteBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	beneficiaryID, err := uuid.Parse(chi.URLParam(r, "beneficiaryID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid beneficiary ID format")
		return
	}

	if err := h.service.DeleteBeneficiary(r.Context(), beneficiaryID, userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultBeneficiaryHandler marks an approved beneficiary as the default.
func (h *LedgerHandlers) SetDefaultBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	beneficiaryID, err := uuid.Parse(chi.URLParam(r, "beneficiaryID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid beneficiary ID format")
		return
	}

	if err := h.service.SetDefaultBeneficiary(r.Context(), userID, beneficiaryID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPendingBeneficiariesHandler returns the admin beneficiary review queue.
func (h *LedgerHandlers) ListPendingBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	beneficiaries, err := h.service.ListPendingBeneficiaries(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if beneficiaries == nil {
		beneficiaries = []domain.Beneficiary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"beneficiaries": beneficiaries})
}

// ReviewBeneficiaryHandler applies an admin decision to a pending beneficiary.
func (h *LedgerHandlers) ReviewBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	approver, ok := GetSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get admin ID from context")
		return
	}
	beneficiaryID, err := uuid.Parse(chi.URLParam(r, "beneficiaryID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid beneficiary ID format")
		return
	}

	var decision domain.ApprovalDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	beneficiary, err := h.service.ReviewBeneficiary(r.Context(), beneficiaryID, approver, decision)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, beneficiary)
}
