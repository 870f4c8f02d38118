package http

import (
	"time"

	"github.com/example/ground-booking/internal/application"
)

type bookingRequest struct {
	GroundID    string `json:"ground_id"`
	Slot        int    `json:"slot"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	CustomerID  string `json:"customer_id"`
	BookingType string `json:"booking_type"`
	Notes       string `json:"notes"`
}

func (r bookingRequest) toParams() application.ReserveParams {
	return application.ReserveParams{
		ResourceID: r.GroundID,
		SlotNumber: r.Slot,
		Interval: application.IntervalInput{
			Date:      r.Date,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
		},
		CustomerID:  r.CustomerID,
		BookingType: r.BookingType,
		Notes:       r.Notes,
	}
}

type seriesRequest struct {
	bookingRequest
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays"`
	Until     string   `json:"until"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	Slot      int    `json:"slot"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookingDTO struct {
	ID              string    `json:"id"`
	GroundID        string    `json:"ground_id"`
	Slot            int       `json:"slot"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	DurationHours   float64   `json:"duration_hours"`
	CustomerID      string    `json:"customer_id"`
	Status          string    `json:"status"`
	BookingType     string    `json:"booking_type"`
	Notes           string    `json:"notes,omitempty"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	RescheduledFrom string    `json:"rescheduled_from,omitempty"`
	SeriesID        string    `json:"series_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookingDTO(b application.Booking) bookingDTO {
	return bookingDTO{
		ID:              b.ID,
		GroundID:        b.ResourceID,
		Slot:            b.SlotNumber,
		Date:            b.Interval.DateString(),
		StartTime:       b.Interval.Start.String(),
		EndTime:         b.Interval.End.String(),
		DurationHours:   b.Interval.DurationHours(),
		CustomerID:      b.CustomerID,
		Status:          string(b.Status),
		BookingType:     string(b.BookingType),
		Notes:           b.Notes,
		Amount:          b.Amount,
		Currency:        b.Currency,
		CancelReason:    b.CancelReason,
		RescheduledFrom: b.RescheduledFrom,
		SeriesID:        b.SeriesID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b))
	}
	return out
}

type conflictDTO struct {
	BookingID    string `json:"booking_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
}

func toConflictDTOs(conflicts []application.ConflictDetail) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			BookingID:    c.BookingID,
			CustomerID:   c.CustomerID,
			CustomerName: c.CustomerName,
			Date:         c.Date,
			StartTime:    c.StartTime,
			EndTime:      c.EndTime,
			Status:       string(c.Status),
		})
	}
	return out
}

type availabilityResponse struct {
	Available bool          `json:"available"`
	Message   string        `json:"message"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type conflictsResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type groundDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SlotCount        int    `json:"slot_count"`
	PricePerSlotHour int64  `json:"price_per_slot_hour"`
	Currency         string `json:"currency"`
}

func toGroundDTO(r application.Resource) groundDTO {
	return groundDTO{
		ID:               r.ID,
		Name:             r.Name,
		SlotCount:        r.SlotCount,
		PricePerSlotHour: r.PricePerSlotHour,
		Currency:         r.Currency,
	}
}

type listGroundsResponse struct {
	Grounds []groundDTO `json:"grounds"`
}

type errorResponse struct {
	ErrorCode     string            `json:"error_code,omitempty"`
	Message       string            `json:"message"`
	Errors        map[string]string `json:"errors,omitempty"`
	Conflicts     []conflictDTO     `json:"conflicts,omitempty"`
	LeadTimeHours *float64          `json:"lead_time_hours,omitempty"`
}
