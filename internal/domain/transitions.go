package domain

import "time"

// Window is the temporal span of a resource: departure/arrival for
// flights, start/end for tours, check-in/check-out for rooms.
type Window struct {
	Start time.Time
	End   time.Time
}

const (
	MinWindowDuration = 10 * time.Minute
	MaxWindowDuration = 24 * time.Hour
)

// ValidateTransition checks a requested status change against the
// per-kind transition table and the wall clock. revised carries the new
// window for DELAYED transitions and must be nil otherwise.
//
// The cancel precondition (no completed-payment bookings) is enforced by
// the status service inside the same transaction, not here.
func ValidateTransition(kind ResourceKind, current, target ResourceStatus, w Window, revised *Window, now time.Time) error {
	switch kind {
	case KindFlight:
		return validateFlightTransition(current, target, w, revised, now)
	case KindTour:
		return validateTourTransition(current, target, w, revised, now)
	case KindRoom:
		return validateRoomTransition(current, target, revised)
	}
	return Conflictf("unknown resource kind %s", kind)
}

func validateFlightTransition(current, target ResourceStatus, w Window, revised *Window, now time.Time) error {
	if target != FlightDelayed && revised != nil {
		return Conflict("revised window is only valid for a delay")
	}
	switch current {
	case FlightScheduled:
		switch target {
		case FlightDelayed:
			return validateRevisedWindow(w, revised)
		case FlightCancelled:
			return nil
		case FlightDeparted:
			if now.Before(w.Start) {
				return Conflict("departure time has not been reached")
			}
			return nil
		}
	case FlightDelayed:
		switch target {
		case FlightScheduled, FlightCancelled:
			return nil
		case FlightDelayed:
			return validateRevisedWindow(w, revised)
		case FlightDeparted:
			if now.Before(w.Start) {
				return Conflict("departure time has not been reached")
			}
			return nil
		}
	case FlightDeparted:
		if target == FlightLanded {
			if now.Before(w.End) {
				return Conflict("arrival time has not been reached")
			}
			return nil
		}
	case FlightCancelled:
		if target == FlightScheduled {
			if !now.Before(w.Start) {
				return Conflict("departure time has already passed")
			}
			return nil
		}
	case FlightLanded:
		return Conflict("flight has landed")
	}
	return Conflictf("flight status %s cannot change to %s", current, target)
}

func validateTourTransition(current, target ResourceStatus, w Window, revised *Window, now time.Time) error {
	if revised != nil {
		return Conflict("tours do not support revised windows")
	}
	switch current {
	case TourUpcoming:
		switch target {
		case TourOngoing:
			if now.Before(w.Start) {
				return Conflict("tour start has not been reached")
			}
			return nil
		case TourCancelled:
			return nil
		}
	case TourOngoing:
		if target == TourCompleted {
			if now.Before(w.End) {
				return Conflict("tour end has not been reached")
			}
			return nil
		}
	case TourCancelled:
		if target == TourUpcoming {
			if !now.Before(w.Start) {
				return Conflict("tour start has already passed")
			}
			return nil
		}
	case TourCompleted:
		return Conflict("tour is completed")
	}
	return Conflictf("tour status %s cannot change to %s", current, target)
}

func validateRoomTransition(current, target ResourceStatus, revised *Window) error {
	if revised != nil {
		return Conflict("rooms do not support revised windows")
	}
	switch current {
	case RoomActive:
		if target == RoomMaintenance || target == RoomClosed {
			return nil
		}
	case RoomMaintenance:
		if target == RoomActive || target == RoomClosed {
			return nil
		}
	case RoomClosed:
		if target == RoomActive {
			return nil
		}
	}
	return Conflictf("room status %s cannot change to %s", current, target)
}

// validateRevisedWindow enforces the delay rules: strictly later
// departure, arrival after departure, duration within sane bounds.
func validateRevisedWindow(current Window, revised *Window) error {
	if revised == nil {
		return Conflict("a delay requires a revised window")
	}
	if !revised.Start.After(current.Start) {
		return Conflict("revised departure must be later than the current one")
	}
	if !revised.End.After(revised.Start) {
		return Conflict("revised arrival must be after revised departure")
	}
	d := revised.End.Sub(revised.Start)
	if d < MinWindowDuration || d > MaxWindowDuration {
		return Conflictf("revised duration %s out of bounds", d)
	}
	return nil
}

// DueTransition returns the time-driven status change a background sweep
// should apply right now, if any. Reversal rows guard against clock or
// data anomalies where a previously advanced state is ahead of the clock.
func DueTransition(kind ResourceKind, status ResourceStatus, w Window, now time.Time) (ResourceStatus, bool) {
	switch kind {
	case KindFlight:
		switch status {
		case FlightScheduled, FlightDelayed:
			if !now.Before(w.Start) {
				return FlightDeparted, true
			}
		case FlightDeparted:
			if now.Before(w.Start) {
				return FlightScheduled, true
			}
			if !now.Before(w.End) {
				return FlightLanded, true
			}
		}
	case KindTour:
		switch status {
		case TourUpcoming:
			if !now.Before(w.Start) {
				return TourOngoing, true
			}
		case TourOngoing:
			if now.Before(w.Start) {
				return TourUpcoming, true
			}
			if !now.Before(w.End) {
				return TourCompleted, true
			}
		}
	case KindRoom:
		// Room state is operator-driven only.
	}
	return "", false
}
