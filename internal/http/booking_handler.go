package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/ground-booking/internal/application"
)

type bookingService interface {
	Reserve(ctx context.Context, params application.ReserveParams) (application.Booking, error)
	ReserveSeries(ctx context.Context, params application.SeriesParams) ([]application.Booking, error)
	Reschedule(ctx context.Context, params application.RescheduleParams) (application.Booking, error)
	GetBooking(ctx context.Context, id string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	Confirm(ctx context.Context, bookingID string) (application.Booking, error)
	Cancel(ctx context.Context, bookingID, reason string) (application.Booking, error)
	Complete(ctx context.Context, bookingID string) (application.Booking, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := decodeJSON(r, w, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	booking, err := h.service.Reserve(r.Context(), req.toParams())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "BookingHandler", "Create", "booking_id", booking.ID).
		InfoContext(r.Context(), "booking reserved")
	w.Header().Set("Location", "/bookings/"+booking.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toBookingDTO(booking))
}

func (h *BookingHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req seriesRequest
	if err := decodeJSON(r, w, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	bookings, err := h.service.ReserveSeries(r.Context(), application.SeriesParams{
		ReserveParams: req.toParams(),
		Frequency:     req.Frequency,
		Weekdays:      req.Weekdays,
		Until:         req.Until,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	values := r.URL.Query()
	slot, err := parseSlot(values.Get("slot"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{
		ResourceID: strings.TrimSpace(values.Get("ground_id")),
		SlotNumber: slot,
		Date:       strings.TrimSpace(values.Get("date")),
		CustomerID: strings.TrimSpace(values.Get("customer_id")),
		Status:     strings.TrimSpace(values.Get("status")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, func(ctx context.Context, id string) (application.Booking, error) {
		return h.service.GetBooking(ctx, id)
	})
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, func(ctx context.Context, id string) (application.Booking, error) {
		return h.service.Confirm(ctx, id)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, func(ctx context.Context, id string) (application.Booking, error) {
		return h.service.Complete(ctx, id)
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, w, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.withBooking(w, r, func(ctx context.Context, id string) (application.Booking, error) {
		return h.service.Cancel(ctx, id, req.Reason)
	})
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, w, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.withBooking(w, r, func(ctx context.Context, id string) (application.Booking, error) {
		return h.service.Reschedule(ctx, application.RescheduleParams{
			BookingID:  id,
			SlotNumber: req.Slot,
			Interval: application.IntervalInput{
				Date:      req.Date,
				StartTime: req.StartTime,
				EndTime:   req.EndTime,
			},
		})
	})
}

func (h *BookingHandler) withBooking(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (application.Booking, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	booking, err := fn(r.Context(), bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBookingDTO(booking))
}
