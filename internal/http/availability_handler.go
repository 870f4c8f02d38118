package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/ground-booking/internal/application"
)

// ProbeKeyHeader identifies an interactive client whose newer probes
// supersede its older ones.
const ProbeKeyHeader = "X-Probe-Key"

type availabilityProber interface {
	Check(ctx context.Context, clientKey string, query application.AvailabilityQuery) (application.AvailabilityResult, error)
}

type AvailabilityHandler struct {
	probe     availabilityProber
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(probe availabilityProber, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{probe: probe, responder: newResponder(logger), logger: logger}
}

// Check answers GET /availability.
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	result, ok := h.run(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: result.Available,
		Message:   result.Message,
		Conflicts: toConflictDTOs(result.Conflicts),
	})
}

// Conflicts answers GET /availability/conflicts.
func (h *AvailabilityHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	result, ok := h.run(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictsResponse{Conflicts: toConflictDTOs(result.Conflicts)})
}

func (h *AvailabilityHandler) run(w http.ResponseWriter, r *http.Request) (application.AvailabilityResult, bool) {
	if h == nil || h.probe == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.AvailabilityResult{}, false
	}

	query, vErr := availabilityQueryFrom(r.URL.Query())
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return application.AvailabilityResult{}, false
	}

	clientKey := strings.TrimSpace(r.Header.Get(ProbeKeyHeader))
	result, err := h.probe.Check(r.Context(), clientKey, query)
	if err != nil {
		if clientKey != "" {
			handlerLogger(r.Context(), h.logger, "AvailabilityHandler", "Check", "probe_key", clientKey).
				DebugContext(r.Context(), "availability probe ended", "error", err)
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return application.AvailabilityResult{}, false
	}
	return result, true
}

func availabilityQueryFrom(values url.Values) (application.AvailabilityQuery, error) {
	slot, err := parseSlot(values.Get("slot"))
	if err != nil {
		return application.AvailabilityQuery{}, err
	}
	return application.AvailabilityQuery{
		ResourceID: strings.TrimSpace(values.Get("ground_id")),
		SlotNumber: slot,
		Interval: application.IntervalInput{
			Date:      strings.TrimSpace(values.Get("date")),
			StartTime: strings.TrimSpace(values.Get("start_time")),
			EndTime:   strings.TrimSpace(values.Get("end_time")),
		},
	}, nil
}

// parseSlot accepts an empty value as zero so the service reports the
// missing field.
func parseSlot(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	slot, err := strconv.Atoi(value)
	if err != nil {
		return 0, &application.ValidationError{FieldErrors: map[string]string{"slot": "must be an integer"}}
	}
	return slot, nil
}
