// Package tickets implements the ticket lifecycle: creation behind a seat
// capacity check, lookups by id or url token, passenger-only partial
// updates, soft deletion, and the lifecycle event published after every
// mutation.
package tickets

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/models"
	"github.com/ScalabilityIssues/ticket-service/internal/monitoring"
	"github.com/ScalabilityIssues/ticket-service/internal/rabbitmq"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/db"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/wire"
)

// tokenLength is the length of the public lookup token assigned to every
// ticket at creation.
const tokenLength = 64

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// FlightManager resolves a flight to the plane serving it.
type FlightManager interface {
	GetPlaneDetails(ctx context.Context, flightID string) (*models.Plane, error)
}

// Validator obtains a signed credential for a ticket.
type Validator interface {
	SignTicket(ctx context.Context, ticket wire.Ticket) ([]byte, error)
}

// Publisher broadcasts ticket lifecycle events.
type Publisher interface {
	NotifyTicketUpdate(ctx context.Context, ticket wire.Ticket, kind rabbitmq.UpdateKind) error
}

type TicketService struct {
	Store      db.TicketStore
	Flights    FlightManager
	Validation Validator
	Events     Publisher
}

func NewTicketService(store db.TicketStore, flights FlightManager, validation Validator, events Publisher) *TicketService {
	return &TicketService{
		Store:      store,
		Flights:    flights,
		Validation: validation,
		Events:     events,
	}
}

// List returns the valid tickets, optionally filtered by flight, plus the
// deleted partition when includeNonvalid is set.
func (s *TicketService) List(ctx context.Context, includeNonvalid bool, flightID string) ([]wire.Ticket, error) {
	records, err := s.Store.List(ctx, includeNonvalid, flightID)
	if err != nil {
		return nil, err
	}

	tickets := make([]wire.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, wire.ToWire(r))
	}
	return tickets, nil
}

// GetQuery selects a ticket either by identifier or by its public url
// token. Exactly one must be set.
type GetQuery struct {
	ID    string
	Token string
}

func (s *TicketService) lookup(ctx context.Context, q GetQuery, allowNonvalid bool) (*models.Ticket, error) {
	switch {
	case q.ID != "" && q.Token != "":
		return nil, apperrors.InvalidArgument("query by id or by token, not both")
	case q.ID != "":
		id, err := wire.ParseID(q.ID)
		if err != nil {
			return nil, err
		}
		return s.Store.GetByID(ctx, id, allowNonvalid)
	case q.Token != "":
		return s.Store.GetByToken(ctx, q.Token, allowNonvalid)
	default:
		return nil, apperrors.InvalidArgument("query required")
	}
}

func (s *TicketService) Get(ctx context.Context, q GetQuery, allowNonvalid bool) (*wire.Ticket, error) {
	record, err := s.lookup(ctx, q, allowNonvalid)
	monitoring.Operation("get", err)
	if err != nil {
		return nil, err
	}
	ticket := wire.ToWire(*record)
	return &ticket, nil
}

// GetWithCredential looks up a valid ticket and has the validation service
// sign it. Deleted tickets never get credentials.
func (s *TicketService) GetWithCredential(ctx context.Context, q GetQuery) (*wire.Ticket, []byte, error) {
	record, err := s.lookup(ctx, q, false)
	if err != nil {
		monitoring.Operation("credential", err)
		return nil, nil, err
	}

	ticket := wire.ToWire(*record)
	credential, err := s.Validation.SignTicket(ctx, ticket)
	monitoring.Operation("credential", err)
	if err != nil {
		return nil, nil, err
	}
	return &ticket, credential, nil
}

// Create checks the flight has a free seat, assigns the lookup token,
// persists the ticket, re-reads it as the source of truth and publishes a
// CREATE event.
//
// The capacity check is read-then-insert with no coordination: two
// concurrent creates for the same flight can both pass it and jointly
// exceed capacity. Accepted gap.
func (s *TicketService) Create(ctx context.Context, payload wire.Ticket) (*wire.Ticket, error) {
	ticket, err := s.create(ctx, payload)
	monitoring.Operation("create", err)
	return ticket, err
}

func (s *TicketService) create(ctx context.Context, payload wire.Ticket) (*wire.Ticket, error) {
	payload.ID = ""
	payload.TicketStatus = models.StatusValid

	record, err := wire.FromWire(payload)
	if err != nil {
		return nil, err
	}

	reserved, err := s.Store.CountActiveByFlight(ctx, record.FlightID)
	if err != nil {
		return nil, err
	}
	plane, err := s.Flights.GetPlaneDetails(ctx, record.FlightID)
	if err != nil {
		return nil, err
	}
	if plane.CabinCapacity-reserved <= 0 {
		return nil, apperrors.FailedPrecondition("no seat available")
	}

	record.URL, err = randomToken(tokenLength)
	if err != nil {
		return nil, apperrors.Internal("failed to generate ticket token", err)
	}

	id, err := s.Store.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	stored, err := s.Store.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	ticket := wire.ToWire(*stored)
	if err := s.Events.NotifyTicketUpdate(ctx, ticket, rabbitmq.UpdateKindCreate); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Delete soft-deletes a ticket and publishes a DELETE event carrying the
// pre-invalidation snapshot. Deleting an already deleted id fails NotFound.
func (s *TicketService) Delete(ctx context.Context, id string) error {
	err := s.delete(ctx, id)
	monitoring.Operation("delete", err)
	return err
}

func (s *TicketService) delete(ctx context.Context, id string) error {
	oid, err := wire.ParseID(id)
	if err != nil {
		return err
	}

	record, err := s.Store.GetByID(ctx, oid, false)
	if err != nil {
		return err
	}
	snapshot := wire.ToWire(*record)

	if err := s.Store.Delete(ctx, oid); err != nil {
		return err
	}

	return s.Events.NotifyTicketUpdate(ctx, snapshot, rabbitmq.UpdateKindDelete)
}

// Update applies a field-mask-driven partial update to the passenger
// details, re-reads the record and publishes an UPDATE event.
func (s *TicketService) Update(ctx context.Context, id string, payload wire.Ticket, mask []string) (*wire.Ticket, error) {
	ticket, err := s.update(ctx, id, payload, mask)
	monitoring.Operation("update", err)
	return ticket, err
}

func (s *TicketService) update(ctx context.Context, id string, payload wire.Ticket, mask []string) (*wire.Ticket, error) {
	oid, err := wire.ParseID(id)
	if err != nil {
		return nil, err
	}

	paths, err := parseUpdatePaths(mask)
	if err != nil {
		return nil, err
	}

	record, err := wire.FromWire(payload)
	if err != nil {
		return nil, err
	}

	if err := s.Store.Update(ctx, oid, record.Passenger, paths); err != nil {
		return nil, err
	}

	// the sparse update is silent on a missing id, so the re-read is also
	// the existence check
	stored, err := s.Store.GetByID(ctx, oid, false)
	if err != nil {
		return nil, err
	}

	ticket := wire.ToWire(*stored)
	if err := s.Events.NotifyTicketUpdate(ctx, ticket, rabbitmq.UpdateKindUpdate); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FlightStatistics combines the active ticket count with the plane's cabin
// capacity.
func (s *TicketService) FlightStatistics(ctx context.Context, flightID string) (*models.FlightStatistics, error) {
	reserved, err := s.Store.CountActiveByFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	plane, err := s.Flights.GetPlaneDetails(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return &models.FlightStatistics{
		TotalSeats:    plane.CabinCapacity,
		ReservedSeats: reserved,
	}, nil
}

// parseUpdatePaths deduplicates the mask and rejects an empty one. Path
// validity is checked at apply time by the store.
func parseUpdatePaths(mask []string) ([]string, error) {
	set := make(map[string]struct{}, len(mask))
	for _, path := range mask {
		set[path] = struct{}{}
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidArgument("'update_mask' cannot be empty")
	}

	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// randomToken draws a fixed-length alphanumeric token from crypto/rand.
func randomToken(length int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	token := make([]byte, length)
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token), nil
}
