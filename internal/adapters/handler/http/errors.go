package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

const approvalRejectedMessage = "The request was declined in your wallet. Nothing was changed; you can try again."

// statusFor maps domain errors onto HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrListNotFound), errors.Is(err, domain.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrInvalidCiphertext),
		errors.Is(err, domain.ErrCiphertextNotAccepted),
		errors.Is(err, domain.ErrMalformedCleartext):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidProof), errors.Is(err, domain.ErrSimpleVotingDisabled):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrApprovalRejected),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrNoTally),
		errors.Is(err, domain.ErrRequestAlreadySettled),
		errors.Is(err, domain.ErrRequestFailed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch {
	case errors.Is(err, domain.ErrApprovalRejected):
		http.Error(w, approvalRejectedMessage, status)
	case status == http.StatusInternalServerError:
		http.Error(w, domain.ErrInternal.Error(), status)
	default:
		http.Error(w, err.Error(), status)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
