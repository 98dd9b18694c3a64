// Package wire holds the external representation of a ticket and the
// fallible mapping between it and the storage record. All boundary
// validation (required sub-objects, identifier format, timestamps, status
// names) lives here.
package wire

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/models"
)

// Ticket is the API message for a ticket. It is serialized as JSON on the
// HTTP surface and as CBOR on the broker; both encoders honor the json
// tags. Timestamps are pointers so an absent value is distinguishable from
// the zero time.
type Ticket struct {
	ID                   string     `json:"id"`
	URL                  string     `json:"url,omitempty"`
	FlightID             string     `json:"flight_id"`
	Passenger            *Passenger `json:"passenger"`
	ReservationDatetime  *time.Time `json:"reservation_datetime"`
	EstimatedCargoWeight uint32     `json:"estimated_cargo_weight"`
	TicketStatus         string     `json:"ticket_status"`
}

// Passenger is the API message for the embedded passenger details.
type Passenger struct {
	SSN       string     `json:"ssn"`
	Name      string     `json:"name"`
	Surname   string     `json:"surname"`
	BirthDate *time.Time `json:"birth_date"`
	Email     string     `json:"email"`
}

// ToWire renders a storage record as its API message. It never fails:
// identifiers are stringified, timestamps converted, and an unrecognized
// stored status falls back to VALID.
func ToWire(t models.Ticket) Ticket {
	reservation := t.ReservationDatetime.Time().UTC()
	birth := t.Passenger.BirthDate.Time().UTC()
	return Ticket{
		ID:       t.ID.Hex(),
		URL:      t.URL,
		FlightID: t.FlightID,
		Passenger: &Passenger{
			SSN:       t.Passenger.SSN,
			Name:      t.Passenger.Name,
			Surname:   t.Passenger.Surname,
			BirthDate: &birth,
			Email:     t.Passenger.Email,
		},
		ReservationDatetime:  &reservation,
		EstimatedCargoWeight: t.EstimatedCargoWeight,
		TicketStatus:         models.NormalizeStatus(t.TicketStatus),
	}
}

// FromWire converts an API message into a storage record. A message without
// an id (a creation payload) gets a freshly generated identifier; anything
// the client supplied there is parsed and must be well formed. The lookup
// URL token is left exactly as given, it is assigned elsewhere.
func FromWire(t Ticket) (models.Ticket, error) {
	if t.Passenger == nil {
		return models.Ticket{}, apperrors.InvalidArgument("missing passenger details")
	}
	if t.ReservationDatetime == nil || t.Passenger.BirthDate == nil {
		return models.Ticket{}, apperrors.InvalidArgument("missing timestamp")
	}
	if !models.KnownStatus(t.TicketStatus) {
		return models.Ticket{}, apperrors.InvalidArgument(fmt.Sprintf("unknown ticket status %q", t.TicketStatus))
	}

	id := primitive.NewObjectID()
	if t.ID != "" {
		var err error
		id, err = ParseID(t.ID)
		if err != nil {
			return models.Ticket{}, err
		}
	}

	return models.Ticket{
		ID:       id,
		URL:      t.URL,
		FlightID: t.FlightID,
		Passenger: models.Passenger{
			SSN:       t.Passenger.SSN,
			Name:      t.Passenger.Name,
			Surname:   t.Passenger.Surname,
			BirthDate: primitive.NewDateTimeFromTime(*t.Passenger.BirthDate),
			Email:     t.Passenger.Email,
		},
		ReservationDatetime:  primitive.NewDateTimeFromTime(*t.ReservationDatetime),
		EstimatedCargoWeight: t.EstimatedCargoWeight,
		TicketStatus:         models.NormalizeStatus(t.TicketStatus),
	}, nil
}

// ParseID parses a wire identifier into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidArgument("invalid id")
	}
	return oid, nil
}
