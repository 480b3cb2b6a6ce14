package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/compartedu/backend/internal/core/domain"
	"github.com/compartedu/backend/internal/core/service"
)

// HTTPHandler is the thin boundary layer over the engine: it parses requests,
// calls the services and maps the typed error taxonomy to status codes.
type HTTPHandler struct {
	listings  *service.ListingService
	stocks    *service.StockService
	requests  *service.RequestService
	shipments *service.ShipmentService
}

func NewHTTPHandler(
	listings *service.ListingService,
	stocks *service.StockService,
	requests *service.RequestService,
	shipments *service.ShipmentService,
) *HTTPHandler {
	return &HTTPHandler{
		listings:  listings,
		stocks:    stocks,
		requests:  requests,
		shipments: shipments,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/listings", h.CreateListing)
	mux.HandleFunc("GET /api/listings/{id}", h.GetListing)
	mux.HandleFunc("DELETE /api/listings/{id}", h.DeactivateListing)
	mux.HandleFunc("GET /api/listings/{id}/stock", h.GetListingStock)
	mux.HandleFunc("GET /api/listings/{id}/requests", h.ListRequestsByListing)
	mux.HandleFunc("GET /api/owners/{id}/listings", h.ListListingsByOwner)

	mux.HandleFunc("POST /api/requests", h.CreateRequest)
	mux.HandleFunc("GET /api/requests/{id}", h.GetRequest)
	mux.HandleFunc("PATCH /api/requests/{id}/accept", h.AcceptRequest)
	mux.HandleFunc("PATCH /api/requests/{id}/reject", h.RejectRequest)
	mux.HandleFunc("PATCH /api/requests/{id}/cancel", h.CancelRequest)
	mux.HandleFunc("GET /api/requests/{id}/shipment", h.GetShipmentByRequest)
	mux.HandleFunc("GET /api/requests/state/{state}", h.ListRequestsByState)
	mux.HandleFunc("GET /api/users/{id}/requests", h.ListRequestsByRequester)
	mux.HandleFunc("POST /api/users/{id}/requests/cancel", h.BulkCancelRequests)

	mux.HandleFunc("POST /api/shipments", h.CreateShipment)
	mux.HandleFunc("GET /api/shipments", h.ListShipments)
	mux.HandleFunc("GET /api/shipments/{id}", h.GetShipment)
	mux.HandleFunc("PUT /api/shipments/{id}", h.UpdateShipment)
	mux.HandleFunc("DELETE /api/shipments/{id}", h.DeleteShipment)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type createListingRequest struct {
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Total       int    `json:"total"`
}

func (h *HTTPHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var body createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	listing, err := h.listings.CreateListing(r.Context(), service.CreateListingInput{
		OwnerID:     body.OwnerID,
		Title:       body.Title,
		Description: body.Description,
		Total:       body.Total,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: toListingDTO(listing)})
}

func (h *HTTPHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toListingDTO(listing)})
}

func (h *HTTPHandler) DeactivateListing(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "listing deactivated"})
}

func (h *HTTPHandler) GetListingStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.stocks.GetByListing(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toStockDTO(stock)})
}

func (h *HTTPHandler) ListListingsByOwner(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListByOwner(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]listingDTO, 0, len(listings))
	for i := range listings {
		dtos = append(dtos, toListingDTO(&listings[i]))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: dtos})
}

type createRequestRequest struct {
	RequestKey  string `json:"request_key"`
	RequesterID string `json:"requester_id"`
	ListingID   string `json:"listing_id"`
	Quantity    int    `json:"quantity"`
	RequestedAt string `json:"requested_at"`
}

func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	requestedAt := time.Now()
	if body.RequestedAt != "" {
		t, err := time.Parse(time.RFC3339, body.RequestedAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "requested_at must be RFC 3339"})
			return
		}
		requestedAt = t
	}

	req, err := h.requests.CreateRequest(r.Context(), service.CreateRequestInput{
		RequestKey:  body.RequestKey,
		RequesterID: body.RequesterID,
		ListingID:   body.ListingID,
		Quantity:    body.Quantity,
		RequestedAt: requestedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: toRequestDTO(req)})
}

func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toRequestDTO(req)})
}

func (h *HTTPHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.AcceptRequest)
}

func (h *HTTPHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.RejectRequest)
}

func (h *HTTPHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.requests.CancelRequest)
}

func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*domain.Request, error)) {
	req, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toRequestDTO(req)})
}

func (h *HTTPHandler) BulkCancelRequests(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.requests.BulkCancelByRequester(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]int{"cancelled": cancelled}})
}

func (h *HTTPHandler) ListRequestsByRequester(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListByRequester(r.Context(), r.PathValue("id"))
	h.writeRequestList(w, reqs, err)
}

func (h *HTTPHandler) ListRequestsByListing(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListByListing(r.Context(), r.PathValue("id"))
	h.writeRequestList(w, reqs, err)
}

func (h *HTTPHandler) ListRequestsByState(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListByState(r.Context(), domain.RequestState(r.PathValue("state")))
	h.writeRequestList(w, reqs, err)
}

func (h *HTTPHandler) writeRequestList(w http.ResponseWriter, reqs []domain.Request, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]requestDTO, 0, len(reqs))
	for i := range reqs {
		dtos = append(dtos, toRequestDTO(&reqs[i]))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: dtos})
}

type shipmentRequest struct {
	RequestID string `json:"request_id"`
	Address   string `json:"address"`
	District  string `json:"district"`
	City      string `json:"city"`
}

func (h *HTTPHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var body shipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	shipment, err := h.shipments.CreateShipment(r.Context(), service.CreateShipmentInput{
		RequestID: body.RequestID,
		Address:   body.Address,
		District:  body.District,
		City:      body.City,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: toShipmentDTO(shipment)})
}

func (h *HTTPHandler) GetShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.shipments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toShipmentDTO(shipment)})
}

func (h *HTTPHandler) GetShipmentByRequest(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.shipments.GetByRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toShipmentDTO(shipment)})
}

func (h *HTTPHandler) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	var body shipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	shipment, err := h.shipments.UpdateAddress(r.Context(), r.PathValue("id"), service.CreateShipmentInput{
		Address:  body.Address,
		District: body.District,
		City:     body.City,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: toShipmentDTO(shipment)})
}

func (h *HTTPHandler) DeleteShipment(w http.ResponseWriter, r *http.Request) {
	if err := h.shipments.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "shipment deleted"})
}

func (h *HTTPHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.shipments.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]shipmentDTO, 0, len(shipments))
	for i := range shipments {
		dtos = append(dtos, toShipmentDTO(&shipments[i]))
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: dtos})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *domain.ValidationError
		notFound     *domain.NotFoundError
		insufficient *domain.InsufficientStockError
		invalidState *domain.InvalidStateTransitionError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: validation.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, apiResponse{Success: false, Message: notFound.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, apiResponse{
			Success: false,
			Message: insufficient.Error(),
			Data:    map[string]int{"shortfall": insufficient.Shortfall()},
		})
	case errors.As(err, &invalidState):
		writeJSON(w, http.StatusConflict, apiResponse{Success: false, Message: invalidState.Error()})
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, apiResponse{Success: false, Message: "duplicate request"})
	default:
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
