package merchant

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/http/respond"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

type Handler struct {
	engine *account.Engine
}

func NewHandler(engine *account.Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes registers the catalog routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.offers)
}

// RedemptionRoutes registers the per-account routes under /{accountID}.
func (h *Handler) RedemptionRoutes(r chi.Router) {
	r.Get("/", h.redemptions)
	r.Post("/", h.redeem)
}

type offerResponse struct {
	ID          string `json:"id"`
	Merchant    string `json:"merchant"`
	Title       string `json:"title"`
	CostPoints  int64  `json:"cost_points"`
	Redemptions int64  `json:"redemptions"`
}

type redemptionResponse struct {
	ID         uuid.UUID `json:"id"`
	OfferID    string    `json:"offer_id"`
	CostPoints int64     `json:"cost_points"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

type redeemResponse struct {
	Redemption    redemptionResponse `json:"redemption"`
	PointsBalance int64              `json:"points_balance"`
}

func toRedemptionResponse(r merchant.Redemption) redemptionResponse {
	return redemptionResponse{ID: r.ID, OfferID: r.OfferID, CostPoints: r.CostPoints, RedeemedAt: r.RedeemedAt}
}

func (h *Handler) offers(w http.ResponseWriter, _ *http.Request) {
	offers := h.engine.Catalog().List()

	resp := make([]offerResponse, len(offers))
	for i, o := range offers {
		resp[i] = offerResponse{
			ID:          o.ID,
			Merchant:    o.Merchant,
			Title:       o.Title,
			CostPoints:  o.CostPoints,
			Redemptions: o.Redemptions(),
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) redemptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Redemptions(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]redemptionResponse, len(list))
	for i, red := range list {
		resp[i] = toRedemptionResponse(red)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type redeemRequest struct {
	OfferID string `json:"offer_id"`
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	red, p, err := h.engine.Redeem(r.Context(), chi.URLParam(r, "accountID"), req.OfferID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, redeemResponse{
		Redemption:    toRedemptionResponse(red),
		PointsBalance: p.PointsBalance,
	})
}
