package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"trattoria-be/internal/utils"
)

// Handler exposes order submission and the status lifecycle over HTTP.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Mount attaches the order routes to the mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.submit)
	mux.HandleFunc("GET /api/orders/{id}", h.get)
	mux.HandleFunc("POST /api/orders/{id}/status", h.updateStatus)
}

type addOnPayload struct {
	AddOnID string  `json:"addon_id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
}

type linePayload struct {
	ItemID             string         `json:"item_id"`
	Name               string         `json:"name"`
	Quantity           int            `json:"quantity"`
	Size               string         `json:"size"`
	UnitPrice          float64        `json:"unit_price"`
	AddOns             []addOnPayload `json:"addons"`
	Notes              string         `json:"notes"`
	ConditionalPricing bool           `json:"conditional_pricing"`
	IncludedFreeCount  int            `json:"included_free_count"`
}

type submitRequest struct {
	CustomerName  string        `json:"customer_name"`
	Phone         string        `json:"phone"`
	Fulfillment   string        `json:"fulfillment"`
	Address       string        `json:"address"`
	PaymentMethod string        `json:"payment_method"`
	Paid          bool          `json:"paid"`
	Lines         []linePayload `json:"lines"`
}

type lineResponse struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Size     string  `json:"size,omitempty"`
	Total    float64 `json:"total"`
}

type orderResponse struct {
	ID        string         `json:"id"`
	Number    string         `json:"number"`
	Status    string         `json:"status"`
	Total     float64        `json:"total"`
	Lines     []lineResponse `json:"lines"`
	CreatedAt time.Time      `json:"created_at"`
}

func toOrderResponse(o *Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Number:    o.Number,
		Status:    string(o.Status),
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			Name:     l.Name,
			Quantity: l.Quantity,
			Size:     l.Size,
			Total:    l.Total,
		})
	}
	return resp
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid body", http.StatusBadRequest)
		return
	}

	input := SubmitInput{
		// The retrying client sends a stable key per logical order so a replay
		// after a lost response does not create a duplicate.
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
		CustomerName:   req.CustomerName,
		Phone:          req.Phone,
		Fulfillment:    Fulfillment(req.Fulfillment),
		Address:        req.Address,
		PaymentMethod:  req.PaymentMethod,
		Paid:           req.Paid,
	}
	for _, l := range req.Lines {
		line := LineInput{
			ItemID:             l.ItemID,
			Name:               l.Name,
			Quantity:           l.Quantity,
			Size:               l.Size,
			UnitPrice:          l.UnitPrice,
			Notes:              l.Notes,
			ConditionalPricing: l.ConditionalPricing,
			IncludedFreeCount:  l.IncludedFreeCount,
		}
		for _, a := range l.AddOns {
			line.AddOns = append(line.AddOns, AddOnSelection{
				AddOnID: a.AddOnID,
				Name:    a.Name,
				Price:   a.Price,
			})
		}
		input.Lines = append(input.Lines, line)
	}

	o, err := h.svc.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrMissingCustomer):
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			utils.WriteJSONError(w, "failed to submit order", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		utils.WriteJSONError(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		utils.WriteJSONError(w, "status is required", http.StatusBadRequest)
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidTransition):
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrOrderTerminal):
			utils.WriteJSONError(w, err.Error(), http.StatusConflict)
		default:
			utils.WriteJSONError(w, "failed to update status", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}
