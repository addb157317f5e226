package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type SettlementHandler struct {
	service ports.SettlementService
	tracker ports.OperationTracker
}

func NewSettlementHandler(service ports.SettlementService, tracker ports.OperationTracker) *SettlementHandler {
	return &SettlementHandler{
		service: service,
		tracker: tracker,
	}
}

type amountResponse struct {
	Account string `json:"account"`
	ListID  string `json:"list_id,omitempty"`
	Amount  uint64 `json:"amount"`
}

func (h *SettlementHandler) RequestDecryption(w http.ResponseWriter, r *http.Request) {
	done := track(w, h.tracker, "request_decryption")
	req, err := h.service.RequestTallyDecryption(r.Context(), chi.URLParam(r, "id"), accountFrom(r))
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": req.ID,
		"list_id":    req.ListID,
	})
}

func (h *SettlementHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingRequests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *SettlementHandler) GetStake(w http.ResponseWriter, r *http.Request) {
	account, listID := accountFrom(r), chi.URLParam(r, "id")
	amount, err := h.service.StakeOf(r.Context(), account, listID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Account: account, ListID: listID, Amount: amount})
}

func (h *SettlementHandler) WithdrawStake(w http.ResponseWriter, r *http.Request) {
	account, listID := accountFrom(r), chi.URLParam(r, "id")

	done := track(w, h.tracker, "withdraw_stake")
	amount, err := h.service.WithdrawStake(r.Context(), account, listID)
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Account: account, ListID: listID, Amount: amount})
}

func (h *SettlementHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)
	amount, err := h.service.RewardBalance(r.Context(), account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Account: account, Amount: amount})
}

func (h *SettlementHandler) ClaimRewards(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	done := track(w, h.tracker, "claim_rewards")
	amount, err := h.service.ClaimRewards(r.Context(), account)
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Account: account, Amount: amount})
}

// oracleCallbackRequest fields are base64 in JSON.
type oracleCallbackRequest struct {
	RequestID string `json:"request_id"`
	Cleartext []byte `json:"cleartext"`
	Proof     []byte `json:"proof"`
}

// OracleCallback receives decryption results from an out-of-process oracle.
// It needs no session: the proof authenticates the payload.
func (h *SettlementHandler) OracleCallback(w http.ResponseWriter, r *http.Request) {
	var req oracleCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.OnTallyDecrypted(r.Context(), req.RequestID, req.Cleartext, req.Proof); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
