// Package http exposes the booking engine over JSON.
//
// The router serves:
//   - GET /availability and GET /availability/conflicts: checks one interval on
//     a ground slot. Query: ground_id, slot, date, start_time, end_time. A
//     client may send X-Probe-Key; a newer probe with the same key makes the
//     older one answer 409 PROBE_SUPERSEDED. Both routes are rate limited per
//     client address.
//   - POST /bookings and POST /bookings/series: create one booking or a
//     recurring series. A collision answers 409 SLOT_UNAVAILABLE with the
//     conflicting bookings.
//   - GET /bookings and GET /bookings/{id}: list and fetch bookings.
//   - POST /bookings/{id}/confirm, /cancel, /complete and /reschedule: drive the
//     booking lifecycle.
//   - GET /grounds and GET /grounds/{id}: the ground catalog.
//   - GET /healthz: storage liveness.
//
// Request and response DTOs live in dto.go so tests and handlers share one
// shape.
package http
