package handlers

import (
	"net/http"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/api/request"
	"github.com/searchlens/backend/internal/api/response"
	"github.com/searchlens/backend/internal/auth"
	"github.com/searchlens/backend/internal/credits"
	"github.com/searchlens/backend/internal/repository"
)

const defaultCreditLogLimit = 20

// CreditsHandler handles credit balance and history endpoints
type CreditsHandler struct {
	ledger   *credits.Ledger
	userRepo *repository.UserRepository
}

// NewCreditsHandler creates a new credits handler
func NewCreditsHandler(ledger *credits.Ledger, userRepo *repository.UserRepository) *CreditsHandler {
	return &CreditsHandler{
		ledger:   ledger,
		userRepo: userRepo,
	}
}

// Balance handles GET /api/v1/credits
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	balance, err := h.ledger.Balance(r.Context(), user.ID)
	if err != nil {
		response.Error(w, err)
		return
	}

	limit := request.GetQueryIntWithRange(r, "limit", defaultCreditLogLimit, 1, 100)

	history, err := h.userRepo.ListCreditLogs(r.Context(), user.ID, limit)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"balance": balance,
		"history": history,
	})
}
