package domain

import (
	"fmt"
	"time"
)

type ResourceKind string

const (
	KindTour   ResourceKind = "TOUR"
	KindRoom   ResourceKind = "ROOM"
	KindFlight ResourceKind = "FLIGHT"
)

func (k ResourceKind) Valid() bool {
	switch k {
	case KindTour, KindRoom, KindFlight:
		return true
	}
	return false
}

// ResourceRef identifies exactly one bookable resource.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

type ResourceStatus string

// Flight statuses.
const (
	FlightScheduled ResourceStatus = "SCHEDULED"
	FlightDelayed   ResourceStatus = "DELAYED"
	FlightDeparted  ResourceStatus = "DEPARTED"
	FlightLanded    ResourceStatus = "LANDED"
	FlightCancelled ResourceStatus = "CANCELLED"
)

// Tour statuses.
const (
	TourUpcoming  ResourceStatus = "UPCOMING"
	TourOngoing   ResourceStatus = "ONGOING"
	TourCompleted ResourceStatus = "COMPLETED"
	TourCancelled ResourceStatus = "CANCELLED"
)

// Room statuses.
const (
	RoomActive      ResourceStatus = "ACTIVE"
	RoomMaintenance ResourceStatus = "MAINTENANCE"
	RoomClosed      ResourceStatus = "CLOSED"
)

// Resource is the common view of a bookable row (tour, room or flight).
// CapacityAvailable is the contended ledger field; every mutation of it
// must happen inside the same transaction as the booking change that
// caused it.
type Resource struct {
	ID                int64
	Kind              ResourceKind
	Name              string
	Status            ResourceStatus
	CapacityTotal     int
	CapacityAvailable int
	PriceCents        int64
	WindowStart       time.Time
	WindowEnd         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *Resource) Ref() ResourceRef {
	return ResourceRef{Kind: r.Kind, ID: r.ID}
}

// Bookable reports whether a resource in the given status may accept new
// reservations.
func Bookable(kind ResourceKind, status ResourceStatus) bool {
	switch kind {
	case KindFlight:
		return status == FlightScheduled || status == FlightDelayed
	case KindTour:
		return status == TourUpcoming
	case KindRoom:
		return status == RoomActive
	}
	return false
}

// NonBookableReason renders the user-visible reason a reservation against
// a resource in the given status is rejected.
func NonBookableReason(kind ResourceKind, status ResourceStatus) string {
	switch status {
	case FlightCancelled, RoomClosed:
		return "resource cancelled"
	case FlightDeparted:
		return "resource departed"
	case FlightLanded, TourCompleted:
		return "resource completed"
	case TourOngoing:
		return "resource already in progress"
	case RoomMaintenance:
		return "resource under maintenance"
	}
	return fmt.Sprintf("resource not bookable in status %s", status)
}

// CancelStatus is the per-kind status that releases every active booking.
func CancelStatus(kind ResourceKind) ResourceStatus {
	if kind == KindRoom {
		return RoomClosed
	}
	return FlightCancelled // same literal for tours
}

// TerminalStatus reports whether no further status transitions exist.
func TerminalStatus(kind ResourceKind, status ResourceStatus) bool {
	switch kind {
	case KindFlight:
		return status == FlightLanded
	case KindTour:
		return status == TourCompleted
	case KindRoom:
		return false
	}
	return true
}
