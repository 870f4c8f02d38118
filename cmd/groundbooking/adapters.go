package main

import (
	"context"

	"github.com/example/ground-booking/internal/application"
	"github.com/example/ground-booking/internal/persistence"
	"github.com/example/ground-booking/internal/scheduler"
)

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) CreateBookings(ctx context.Context, bookings []application.Booking) error {
	models := make([]persistence.Booking, 0, len(bookings))
	for _, booking := range bookings {
		models = append(models, toPersistenceBooking(booking))
	}
	return a.repo.CreateBookings(ctx, models)
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	stored, err := a.repo.ListBookings(ctx, toPersistenceFilter(filter))
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(stored))
	for _, model := range stored {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

func (a *bookingRepositoryAdapter) UpdateBookingStatus(ctx context.Context, change application.StatusChange) (application.Booking, error) {
	stored, err := a.repo.UpdateBookingStatus(ctx, toPersistenceUpdate(change))
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) ReplaceBooking(ctx context.Context, change application.StatusChange, replacement application.Booking) error {
	return a.repo.ReplaceBooking(ctx, toPersistenceUpdate(change), toPersistenceBooking(replacement))
}

type resourceCatalogAdapter struct {
	repo persistence.GroundRepository
}

func newResourceCatalogAdapter(repo persistence.GroundRepository) *resourceCatalogAdapter {
	return &resourceCatalogAdapter{repo: repo}
}

func (a *resourceCatalogAdapter) GetResource(ctx context.Context, id string) (application.Resource, error) {
	ground, err := a.repo.GetGround(ctx, id)
	if err != nil {
		return application.Resource{}, err
	}
	return toApplicationResource(ground), nil
}

func (a *resourceCatalogAdapter) ListResources(ctx context.Context) ([]application.Resource, error) {
	grounds, err := a.repo.ListGrounds(ctx)
	if err != nil {
		return nil, err
	}
	resources := make([]application.Resource, 0, len(grounds))
	for _, ground := range grounds {
		resources = append(resources, toApplicationResource(ground))
	}
	return resources, nil
}

type customerDirectoryAdapter struct {
	repo persistence.CustomerRepository
}

func newCustomerDirectoryAdapter(repo persistence.CustomerRepository) *customerDirectoryAdapter {
	return &customerDirectoryAdapter{repo: repo}
}

func (a *customerDirectoryAdapter) GetCustomer(ctx context.Context, id string) (application.Customer, error) {
	customer, err := a.repo.GetCustomer(ctx, id)
	if err != nil {
		return application.Customer{}, err
	}
	return application.Customer{ID: customer.ID, Name: customer.Name, Email: customer.Email}, nil
}

func toApplicationResource(model persistence.Ground) application.Resource {
	return application.Resource{
		ID:               model.ID,
		Name:             model.Name,
		SlotCount:        model.SlotCount,
		PricePerSlotHour: model.PricePerSlotHour,
		Currency:         model.Currency,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:         model.ID,
		ResourceID: model.GroundID,
		SlotNumber: model.SlotNumber,
		Interval: scheduler.Interval{
			Date:  scheduler.TruncateDate(model.Date),
			Start: scheduler.TimeOfDay(model.StartMinute),
			End:   scheduler.TimeOfDay(model.EndMinute),
		},
		CustomerID:      model.CustomerID,
		Status:          scheduler.Status(model.Status),
		BookingType:     application.BookingType(model.BookingType),
		Notes:           model.Notes,
		Amount:          model.Amount,
		Currency:        model.Currency,
		CancelReason:    model.CancelReason,
		RescheduledFrom: model.RescheduledFrom,
		SeriesID:        model.SeriesID,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:              booking.ID,
		GroundID:        booking.ResourceID,
		SlotNumber:      booking.SlotNumber,
		Date:            scheduler.TruncateDate(booking.Interval.Date),
		StartMinute:     int(booking.Interval.Start),
		EndMinute:       int(booking.Interval.End),
		CustomerID:      booking.CustomerID,
		Status:          string(booking.Status),
		BookingType:     string(booking.BookingType),
		Notes:           booking.Notes,
		Amount:          booking.Amount,
		Currency:        booking.Currency,
		CancelReason:    booking.CancelReason,
		RescheduledFrom: booking.RescheduledFrom,
		SeriesID:        booking.SeriesID,
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

func toPersistenceFilter(filter application.BookingFilter) persistence.BookingFilter {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	return persistence.BookingFilter{
		GroundID:   filter.ResourceID,
		SlotNumber: filter.SlotNumber,
		Date:       filter.Date,
		OnOrBefore: filter.OnOrBefore,
		CustomerID: filter.CustomerID,
		Statuses:   statuses,
	}
}

func toPersistenceUpdate(change application.StatusChange) persistence.StatusUpdate {
	return persistence.StatusUpdate{
		BookingID:  change.BookingID,
		FromStatus: string(change.From),
		ToStatus:   string(change.To),
		Reason:     change.Reason,
		At:         change.At,
	}
}
