package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ticket status names as persisted and as exposed on the wire.
const (
	StatusValid   = "VALID"
	StatusDeleted = "DELETED"
)

// Ticket is the storage record for a passenger ticket. A ticket lives in
// exactly one of two collections: "tickets" while it is valid, and
// "tickets-deleted" once it has been soft-deleted. ID and URL are assigned
// at creation and never change afterwards.
type Ticket struct {
	ID                   primitive.ObjectID `bson:"_id"`
	URL                  string             `bson:"url"`
	FlightID             string             `bson:"flight_id"`
	Passenger            Passenger          `bson:"passenger"`
	ReservationDatetime  primitive.DateTime `bson:"reservation_datetime"`
	EstimatedCargoWeight uint32             `bson:"estimated_cargo_weight"`
	TicketStatus         string             `bson:"ticket_status"`
}

// Passenger is embedded in a ticket and has no identity of its own. These
// are the only fields reachable through the update path.
type Passenger struct {
	SSN       string             `bson:"ssn"`
	Name      string             `bson:"name"`
	Surname   string             `bson:"surname"`
	BirthDate primitive.DateTime `bson:"birth_date"`
	Email     string             `bson:"email"`
}

// NormalizeStatus decodes a stored status name. Unknown or empty values
// decode to StatusValid, the safe default.
func NormalizeStatus(s string) string {
	if s == StatusDeleted {
		return StatusDeleted
	}
	return StatusValid
}

// KnownStatus reports whether s is a recognized status name. The empty
// string counts as the unspecified member of the enumeration.
func KnownStatus(s string) bool {
	return s == "" || s == StatusValid || s == StatusDeleted
}
