package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/httpx"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/service"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, profileFrom(r.Context()))
}

type usernameRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleSetUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	profile, err := s.deps.Users.SetUsername(r.Context(), uidFrom(r.Context()), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	available, err := s.deps.Users.CheckUsernameAvailability(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"username": name, "available": available})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.List(r.Context(), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	httpx.WriteJSON(w, http.StatusOK, plans)
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	out := map[string][]string{"image": {}, "video": {}}
	if s.deps.Models != nil {
		out["image"] = append(out["image"], s.deps.Models.Models(models.MediaImage)...)
		out["video"] = append(out["video"], s.deps.Models.Models(models.MediaVideo)...)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type paymentRequest struct {
	PlanID         int64  `json:"planId"`
	PaymentSlipURL string `json:"paymentSlipUrl"`
	ReferenceID    string `json:"referenceId"`
}

func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sub, err := s.deps.Payments.Submit(r.Context(), uidFrom(r.Context()), service.PaymentInput{
		PlanID:         req.PlanID,
		PaymentSlipURL: req.PaymentSlipURL,
		ReferenceID:    req.ReferenceID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Payments.ListForUser(r.Context(), uidFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if subs == nil {
		subs = []models.PaymentSubmission{}
	}
	httpx.WriteJSON(w, http.StatusOK, subs)
}

type promoRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if s.deps.Promos == nil {
		s.writeError(w, apperror.Unavailable("promo codes are disabled"))
		return
	}
	bonus, err := s.deps.Promos.Apply(r.Context(), uidFrom(r.Context()), req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"credits": bonus})
}
