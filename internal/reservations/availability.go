package reservations

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/equiprent/equiprent-backend/pkg/db/models"
)

// Overlapping filters reservations down to those whose half-open window
// [StartDate, EndDate) intersects [start, end). excludeID, when non-nil,
// drops that reservation so updates do not conflict with themselves.
func Overlapping(reservations []models.InventoryReservation, start, end time.Time, excludeID *uuid.UUID) []models.InventoryReservation {
	var out []models.InventoryReservation
	for i := range reservations {
		res := &reservations[i]
		if excludeID != nil && res.ID == *excludeID {
			continue
		}
		if res.Overlaps(start, end) {
			out = append(out, *res)
		}
	}
	return out
}

// PeakDemand computes the maximum number of units simultaneously reserved at
// any instant within [start, end). Windows are clamped to the query range. A
// boundary event releases capacity before claiming it, so a reservation
// ending exactly when another starts never stacks.
func PeakDemand(reservations []models.InventoryReservation, start, end time.Time) int {
	type event struct {
		at    time.Time
		delta int
	}

	events := make([]event, 0, len(reservations)*2)
	for i := range reservations {
		res := &reservations[i]
		if !res.Overlaps(start, end) {
			continue
		}
		from := res.StartDate
		if from.Before(start) {
			from = start
		}
		to := res.EndDate
		if to.After(end) {
			to = end
		}
		events = append(events, event{at: from, delta: res.Quantity})
		events = append(events, event{at: to, delta: -res.Quantity})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	current, peak := 0, 0
	for _, e := range events {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// CommittedPeak computes the peak concurrent demand across the full windows
// of the given reservations. The quantity counters on the item are a
// materialized view of this value.
func CommittedPeak(reservations []models.InventoryReservation) int {
	if len(reservations) == 0 {
		return 0
	}
	earliest := reservations[0].StartDate
	latest := reservations[0].EndDate
	for i := range reservations[1:] {
		res := &reservations[i+1]
		if res.StartDate.Before(earliest) {
			earliest = res.StartDate
		}
		if res.EndDate.After(latest) {
			latest = res.EndDate
		}
	}
	return PeakDemand(reservations, earliest, latest)
}
