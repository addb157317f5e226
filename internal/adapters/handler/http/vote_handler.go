package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vncsmyrnk/curation/internal/core/domain"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
	tracker ports.OperationTracker
}

func NewVoteHandler(service ports.VoteService, tracker ports.OperationTracker) *VoteHandler {
	return &VoteHandler{
		service: service,
		tracker: tracker,
	}
}

// voteRequest still decodes encrypted_vote so that clients sending one get a
// clear rejection instead of a silently different vote.
type voteRequest struct {
	Stake         uint64          `json:"stake"`
	EncryptedVote []byte          `json:"encrypted_vote,omitempty"`
	Mode          domain.VotePath `json:"mode,omitempty"`
}

type voteResponse struct {
	ListID string          `json:"list_id"`
	Path   domain.VotePath `json:"path"`
	// TotalVotes is only known on the simple path.
	TotalVotes *int64 `json:"total_votes,omitempty"`
}

func (h *VoteHandler) VoteOnList(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.EncryptedVote) > 0 {
		writeError(w, domain.ErrCiphertextNotAccepted)
		return
	}

	input := ports.VoteInput{
		ListID:  listID,
		VoterID: accountFrom(r),
		Stake:   req.Stake,
	}
	resp := voteResponse{ListID: listID, Path: domain.VoteHomomorphic}

	done := track(w, h.tracker, "vote")
	var err error
	switch req.Mode {
	case "", domain.VoteHomomorphic:
		err = h.service.Vote(r.Context(), input)
	case domain.VoteSimple:
		var list *domain.List
		if list, err = h.service.VoteSimple(r.Context(), input); err == nil {
			resp.Path = domain.VoteSimple
			resp.TotalVotes = &list.TotalVotes
		}
	default:
		done(nil)
		http.Error(w, "unknown vote mode", http.StatusBadRequest)
		return
	}
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
