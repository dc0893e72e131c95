package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"escrowflow/agreement"
	"escrowflow/analytics"
	"escrowflow/lifecycle"
	"escrowflow/listing"
	"escrowflow/notification"
	"escrowflow/profile"
	"escrowflow/session"
	"escrowflow/transaction"
)

type ctxKey string

const (
	ctxKeyProfileID ctxKey = "profileID"
	ctxKeyRole      ctxKey = "role"
)

// Server holds the wired services and exposes them over JSON endpoints. It
// owns no business rules; every decision lives in the packages it delegates
// to.
type Server struct {
	sessions *session.Service
	profiles profile.Repository
	listings *listing.Service
	engine   *lifecycle.Engine
	calc     *analytics.Calculator
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/profiles", s.withAuth(s.handleProfiles))
	mux.HandleFunc("/api/listings", s.withAuth(s.handleListings))
	mux.HandleFunc("/api/listings/", s.withAuth(s.handleListingDetail))
	mux.HandleFunc("/api/agreements", s.withAuth(s.handleAgreements))
	mux.HandleFunc("/api/agreements/", s.withAuth(s.handleAgreementDetail))
	mux.HandleFunc("/api/transactions", s.withAuth(s.handleTransactions))
	mux.HandleFunc("/api/transactions/", s.withAuth(s.handleTransactionDetail))
	mux.HandleFunc("/api/notifications", s.withAuth(s.handleNotifications))
	mux.HandleFunc("/api/notifications/", s.withAuth(s.handleNotificationDetail))
	mux.HandleFunc("/api/dashboard", s.withAuth(s.handleDashboard))
	return mux
}

// withAuth verifies the bearer token and stashes the caller's identity in the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		profileID, role, err := s.sessions.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyProfileID, profileID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func profileIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyProfileID).(string)
	return id
}

func roleFrom(r *http.Request) profile.Role {
	role, _ := r.Context().Value(ctxKeyRole).(profile.Role)
	return role
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Phone    string `json:"phone"`
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.sessions.Login(r.Context(), req.Phone, req.Passcode)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeInternal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token   string          `json:"token"`
		Profile profileResponse `json:"profile"`
	}{Token: result.Token, Profile: toProfileResponse(result.Profile)})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		writeInternal(w, err)
		return
	}

	items := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, listPayload[profileResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		phone := r.URL.Query().Get("seller")
		if phone == "" {
			writeError(w, http.StatusBadRequest, "seller query parameter is required")
			return
		}
		listings, err := s.listings.ActiveBySeller(r.Context(), phone)
		if err != nil {
			writeInternal(w, err)
			return
		}
		items := make([]listingResponse, 0, len(listings))
		for _, l := range listings {
			items = append(items, toListingResponse(l))
		}
		writeJSON(w, http.StatusOK, listPayload[listingResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		if roleFrom(r) != profile.RoleSeller {
			writeError(w, http.StatusForbidden, "only sellers publish listings")
			return
		}
		var req struct {
			Title       string `json:"title"`
			Kind        string `json:"kind"`
			Price       int64  `json:"price"`
			Terms       string `json:"terms"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		seller, err := s.profiles.GetByID(r.Context(), profileIDFrom(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		l, err := s.listings.Publish(r.Context(), listing.CreateParams{
			SellerID:    seller.ID,
			SellerPhone: seller.Phone,
			Title:       req.Title,
			Kind:        listing.Kind(req.Kind),
			Price:       req.Price,
			Terms:       req.Terms,
			Description: req.Description,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toListingResponse(l))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListingDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/listings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "listing id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		l, err := s.listings.GetByID(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toListingResponse(l))

	case http.MethodDelete:
		if err := s.listings.Remove(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAgreements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agreements, err := s.engine.ListAgreements(r.Context(), profileIDFrom(r))
		if err != nil {
			writeInternal(w, err)
			return
		}
		items := make([]agreementResponse, 0, len(agreements))
		for _, a := range agreements {
			items = append(items, toAgreementResponse(a))
		}
		writeJSON(w, http.StatusOK, listPayload[agreementResponse]{Items: items, Total: len(items)})

	case http.MethodPost:
		var req struct {
			ReceiverProfileID string `json:"receiverProfileId"`
			Title             string `json:"title"`
			Amount            int64  `json:"amount"`
			Type              string `json:"type"`
			Terms             string `json:"terms"`
			ListingID         string `json:"listingId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		params := lifecycle.CreateAgreementParams{
			SenderProfileID:   profileIDFrom(r),
			ReceiverProfileID: req.ReceiverProfileID,
			Title:             req.Title,
			Amount:            req.Amount,
			Type:              agreement.Type(req.Type),
			Terms:             req.Terms,
			ListingID:         req.ListingID,
		}
		if req.ListingID != "" {
			l, err := s.listings.GetByID(r.Context(), req.ListingID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			params.Title = l.Title
			params.Amount = l.Price
			params.Terms = l.Terms
			if params.Type == "" {
				params.Type = agreementTypeForKind(l.Kind)
			}
		}
		a, err := s.engine.CreateAgreement(r.Context(), params)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAgreementResponse(a))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAgreementDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/agreements/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "agreement id is required")
		return
	}

	if action == "respond" && r.Method == http.MethodPost {
		var req struct {
			Decision string `json:"decision"`
			Feedback string `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		result, err := s.engine.RespondToAgreement(r.Context(), id, profileIDFrom(r), agreement.Status(req.Decision), req.Feedback)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := struct {
			Agreement   agreementResponse    `json:"agreement"`
			Transaction *transactionResponse `json:"transaction,omitempty"`
		}{Agreement: toAgreementResponse(result.Agreement)}
		if result.Transaction != nil {
			t := toTransactionResponse(*result.Transaction)
			resp.Transaction = &t
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bucket := transaction.Status(r.URL.Query().Get("status"))
	txs, err := s.engine.ListTransactions(r.Context(), profileIDFrom(r), bucket)
	if err != nil {
		writeInternal(w, err)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		items = append(items, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, listPayload[transactionResponse]{Items: items, Total: len(items)})
}

func (s *Server) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	if action == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t, err := s.engine.GetTransaction(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponse(t))
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor := profileIDFrom(r)
	var (
		t   transaction.Transaction
		err error
	)
	switch action {
	case "accept":
		t, err = s.engine.AcceptContract(r.Context(), id, actor)
	case "pay":
		t, err = s.engine.ConfirmPayment(r.Context(), id, actor)
	case "delivery-proof":
		t, err = s.engine.UploadDeliveryProof(r.Context(), id, actor)
	case "confirm-delivery":
		t, err = s.engine.ConfirmDelivery(r.Context(), id, actor)
	case "dispute":
		var req struct {
			Details     string `json:"details"`
			HasEvidence bool   `json:"hasEvidence"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		t, err = s.engine.RaiseDispute(r.Context(), id, actor, req.Details, req.HasEvidence)
	case "resolve":
		t, err = s.engine.ResolveDispute(r.Context(), id, actor)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	actor := profileIDFrom(r)
	notifications, err := s.engine.ListNotifications(r.Context(), actor)
	if err != nil {
		writeInternal(w, err)
		return
	}
	unread, err := s.calc.UnreadCount(r.Context(), actor)
	if err != nil {
		writeInternal(w, err)
		return
	}

	items := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, struct {
		Items  []notificationResponse `json:"items"`
		Total  int                    `json:"total"`
		Unread int                    `json:"unread"`
	}{Items: items, Total: len(items), Unread: unread})
}

func (s *Server) handleNotificationDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "read" || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.engine.MarkNotificationRead(r.Context(), id, profileIDFrom(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()
	actor := profileIDFrom(r)

	balance, err := s.calc.EscrowBalance(ctx, actor)
	if err != nil {
		writeInternal(w, err)
		return
	}
	counts, err := s.calc.CountsByStatus(ctx, actor)
	if err != nil {
		writeInternal(w, err)
		return
	}
	stats, err := s.calc.ProfileStats(ctx, actor)
	if err != nil {
		writeInternal(w, err)
		return
	}
	unread, err := s.calc.UnreadCount(ctx, actor)
	if err != nil {
		writeInternal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		EscrowBalance: balance,
		Counts: countsResponse{
			All:        counts.All,
			InProgress: counts.InProgress,
			Completed:  counts.Completed,
			Disputed:   counts.Disputed,
		},
		Stats: statsResponse{
			Total:        stats.Total,
			Completed:    stats.Completed,
			SuccessRate:  stats.SuccessRate,
			AverageValue: stats.AverageValue,
		},
		Unread: unread,
	})
}

// writeDomainError maps the business error taxonomy to status codes. An
// InvalidTransition is a conflict between the attempted event and current
// state, not a malformed request.
func writeDomainError(w http.ResponseWriter, err error) {
	var invalid *lifecycle.InvalidTransitionError
	var validation *lifecycle.ValidationError

	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, struct {
			Error string `json:"error"`
			Event string `json:"event"`
			Stage string `json:"stage"`
			Role  string `json:"role,omitempty"`
		}{
			Error: invalid.Error(),
			Event: string(invalid.Event),
			Stage: string(invalid.Stage),
			Role:  string(invalid.Role),
		})
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, lifecycle.ErrNotRecipient):
		writeError(w, http.StatusForbidden, "not the recipient")
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, listing.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeInternal(w, err)
	}
}

func writeInternal(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func agreementTypeForKind(k listing.Kind) agreement.Type {
	if k == listing.KindService {
		return agreement.TypeServices
	}
	return agreement.TypeGoods
}

type listPayload[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type profileResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func toProfileResponse(p profile.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Role:      string(p.Role),
		Phone:     p.Phone,
		Email:     p.Email,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type listingResponse struct {
	ID          string `json:"id"`
	SellerID    string `json:"sellerId"`
	SellerPhone string `json:"sellerPhone"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	Price       int64  `json:"price"`
	Terms       string `json:"terms"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

func toListingResponse(l listing.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		SellerPhone: l.SellerPhone,
		Title:       l.Title,
		Kind:        string(l.Kind),
		Price:       l.Price,
		Terms:       l.Terms,
		Description: l.Description,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

type partyResponse struct {
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      string `json:"role,omitempty"`
}

type agreementResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Amount      int64         `json:"amount"`
	Type        string        `json:"type"`
	Terms       string        `json:"terms"`
	Sender      partyResponse `json:"sender"`
	Receiver    partyResponse `json:"receiver"`
	Status      string        `json:"status"`
	Feedback    string        `json:"feedback,omitempty"`
	ListingID   string        `json:"listingId,omitempty"`
	CreatedAt   string        `json:"createdAt"`
	RespondedAt string        `json:"respondedAt,omitempty"`
}

func toAgreementResponse(a agreement.Agreement) agreementResponse {
	resp := agreementResponse{
		ID:     a.ID,
		Title:  a.Title,
		Amount: a.Amount,
		Type:   string(a.Type),
		Terms:  a.Terms,
		Sender: partyResponse{
			ProfileID: a.Sender.ProfileID,
			Name:      a.Sender.Name,
			Phone:     a.Sender.Phone,
			Role:      string(a.Sender.Role),
		},
		Receiver: partyResponse{
			ProfileID: a.Receiver.ProfileID,
			Name:      a.Receiver.Name,
			Phone:     a.Receiver.Phone,
			Role:      string(a.Receiver.Role),
		},
		Status:    string(a.Status),
		Feedback:  a.Feedback,
		ListingID: a.ListingID,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.RespondedAt != nil {
		resp.RespondedAt = a.RespondedAt.Format(time.RFC3339)
	}
	return resp
}

type transactionResponse struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Amount         int64         `json:"amount"`
	Description    string        `json:"description"`
	Buyer          partyResponse `json:"buyer"`
	Seller         partyResponse `json:"seller"`
	Stage          string        `json:"stage"`
	Status         string        `json:"status"`
	DisputeDetails string        `json:"disputeDetails,omitempty"`
	HasEvidence    bool          `json:"hasEvidence,omitempty"`
	AgreementID    string        `json:"agreementId,omitempty"`
	CreatedAt      string        `json:"createdAt"`
	UpdatedAt      string        `json:"updatedAt"`
}

func toTransactionResponse(t transaction.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Title:       t.Title,
		Amount:      t.Amount,
		Description: t.Description,
		Buyer: partyResponse{
			ProfileID: t.Buyer.ProfileID,
			Name:      t.Buyer.Name,
			Phone:     t.Buyer.Phone,
		},
		Seller: partyResponse{
			ProfileID: t.Seller.ProfileID,
			Name:      t.Seller.Name,
			Phone:     t.Seller.Phone,
		},
		Stage:          string(t.Stage),
		Status:         string(t.Status),
		DisputeDetails: t.DisputeDetails,
		HasEvidence:    t.HasEvidence,
		AgreementID:    t.AgreementID,
		CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.Format(time.RFC3339),
	}
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RelatedID string `json:"relatedId,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		RelatedID: n.RelatedID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

type countsResponse struct {
	All        int `json:"all"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Disputed   int `json:"disputed"`
}

type statsResponse struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	SuccessRate  float64 `json:"successRate"`
	AverageValue int64   `json:"averageValue"`
}

type dashboardResponse struct {
	EscrowBalance int64          `json:"escrowBalance"`
	Counts        countsResponse `json:"counts"`
	Stats         statsResponse  `json:"stats"`
	Unread        int            `json:"unread"`
}
