package ticket_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/logger"
	"github.com/ScalabilityIssues/ticket-service/internal/models"
	"github.com/ScalabilityIssues/ticket-service/internal/rabbitmq"
	tickets "github.com/ScalabilityIssues/ticket-service/internal/tickets/service"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/ticket_api"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/wire"
)

// memStore is a minimal in-memory TicketStore for exercising the HTTP
// surface.
type memStore struct {
	active  map[primitive.ObjectID]models.Ticket
	deleted map[primitive.ObjectID]models.Ticket
}

func newMemStore() *memStore {
	return &memStore{
		active:  make(map[primitive.ObjectID]models.Ticket),
		deleted: make(map[primitive.ObjectID]models.Ticket),
	}
}

func (m *memStore) List(_ context.Context, includeNonvalid bool, flightID string) ([]models.Ticket, error) {
	out := []models.Ticket{}
	for _, t := range m.active {
		if flightID == "" || t.FlightID == flightID {
			out = append(out, t)
		}
	}
	if includeNonvalid {
		for _, t := range m.deleted {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id primitive.ObjectID, allowNonvalid bool) (*models.Ticket, error) {
	if t, ok := m.active[id]; ok {
		return &t, nil
	}
	if allowNonvalid {
		if t, ok := m.deleted[id]; ok {
			return &t, nil
		}
	}
	return nil, apperrors.NotFound("ticket not found")
}

func (m *memStore) GetByToken(_ context.Context, token string, allowNonvalid bool) (*models.Ticket, error) {
	for _, t := range m.active {
		if t.URL == token {
			return &t, nil
		}
	}
	if allowNonvalid {
		for _, t := range m.deleted {
			if t.URL == token {
				return &t, nil
			}
		}
	}
	return nil, apperrors.NotFound("ticket not found")
}

func (m *memStore) Create(_ context.Context, ticket models.Ticket) (primitive.ObjectID, error) {
	m.active[ticket.ID] = ticket
	return ticket.ID, nil
}

func (m *memStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ticket, err := m.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	ticket.TicketStatus = models.StatusDeleted
	m.deleted[id] = *ticket
	delete(m.active, id)
	return nil
}

func (m *memStore) Update(_ context.Context, id primitive.ObjectID, update models.Passenger, paths []string) error {
	ticket, ok := m.active[id]
	if !ok {
		return nil
	}
	for _, path := range paths {
		switch path {
		case "passenger.ssn":
			ticket.Passenger.SSN = update.SSN
		case "passenger.name":
			ticket.Passenger.Name = update.Name
		case "passenger.surname":
			ticket.Passenger.Surname = update.Surname
		case "passenger.birth_date":
			ticket.Passenger.BirthDate = update.BirthDate
		case "passenger.email":
			ticket.Passenger.Email = update.Email
		default:
			return apperrors.InvalidArgument("invalid update path " + path)
		}
	}
	m.active[id] = ticket
	return nil
}

func (m *memStore) CountActiveByFlight(_ context.Context, flightID string) (int32, error) {
	var count int32
	for _, t := range m.active {
		if t.FlightID == flightID {
			count++
		}
	}
	return count, nil
}

type stubFlights struct{ capacity int32 }

func (s stubFlights) GetPlaneDetails(context.Context, string) (*models.Plane, error) {
	return &models.Plane{ID: "P1", CabinCapacity: s.capacity}, nil
}

type stubValidator struct{}

func (stubValidator) SignTicket(context.Context, wire.Ticket) ([]byte, error) {
	return []byte("signed"), nil
}

type nopPublisher struct{}

func (nopPublisher) NotifyTicketUpdate(context.Context, wire.Ticket, rabbitmq.UpdateKind) error {
	return nil
}

func newTestRouter(capacity int32) http.Handler {
	service := tickets.NewTicketService(newMemStore(), stubFlights{capacity: capacity}, stubValidator{}, nopPublisher{})
	handler := &ticket_api.Handler{TicketService: service, Logger: &logger.Logger{}}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r
}

func creationBody() []byte {
	reservation := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	birth := time.Date(1992, 7, 21, 0, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(wire.Ticket{
		FlightID: "F1",
		Passenger: &wire.Passenger{
			SSN:       "123-45-6789",
			Name:      "Ada",
			Surname:   "Lovelace",
			BirthDate: &birth,
			Email:     "ada@example.com",
		},
		ReservationDatetime:  &reservation,
		EstimatedCargoWeight: 18,
	})
	return body
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createTicket(t *testing.T, router http.Handler) wire.Ticket {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/v1/tickets", creationBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ticket wire.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

func TestListTicketsEmpty(t *testing.T) {
	router := newTestRouter(2)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tickets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tickets":[]}`, rec.Body.String())
}

func TestCreateAndGetTicket(t *testing.T) {
	router := newTestRouter(2)
	ticket := createTicket(t, router)

	assert.Equal(t, models.StatusValid, ticket.TicketStatus)
	assert.Len(t, ticket.URL, 64)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/tickets/token/"+ticket.URL, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTicketNoSeatAvailable(t *testing.T) {
	router := newTestRouter(1)
	createTicket(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/tickets", creationBody())
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.JSONEq(t, `{"error":"no seat available"}`, rec.Body.String())
}

func TestCreateTicketInvalidBody(t *testing.T) {
	router := newTestRouter(2)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/tickets", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTicketNotFoundAndBadID(t *testing.T) {
	router := newTestRouter(2)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tickets/"+primitive.NewObjectID().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"ticket not found"}`, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/v1/tickets/not-hex", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTicketLifecycle(t *testing.T) {
	router := newTestRouter(2)
	ticket := createTicket(t, router)

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/tickets/"+ticket.ID+"?allow_nonvalid=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var got wire.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.StatusDeleted, got.TicketStatus)

	// deleting again is NotFound, not a silent no-op
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/tickets/"+ticket.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTicketMaskValidation(t *testing.T) {
	router := newTestRouter(2)
	ticket := createTicket(t, router)

	body, _ := json.Marshal(map[string]any{"ticket": json.RawMessage(creationBody())})
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/tickets/"+ticket.ID, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"'update_mask' cannot be empty"}`, rec.Body.String())

	body, _ = json.Marshal(map[string]any{
		"ticket":      json.RawMessage(creationBody()),
		"update_mask": []string{"flight_id"},
	})
	rec = doRequest(t, router, http.MethodPatch, "/api/v1/tickets/"+ticket.ID, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "flight_id")
}

func TestUpdateTicket(t *testing.T) {
	router := newTestRouter(2)
	ticket := createTicket(t, router)

	updated := creationBody()
	var payload wire.Ticket
	require.NoError(t, json.Unmarshal(updated, &payload))
	payload.Passenger.Email = "countess@example.com"

	body, _ := json.Marshal(map[string]any{
		"ticket":      payload,
		"update_mask": []string{"passenger.email"},
	})
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/tickets/"+ticket.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got wire.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "countess@example.com", got.Passenger.Email)
	assert.Equal(t, "Ada", got.Passenger.Name)
}

func TestGetTicketCredential(t *testing.T) {
	router := newTestRouter(2)
	ticket := createTicket(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/tickets/"+ticket.ID+"/credential", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Ticket     wire.Ticket `json:"ticket"`
		Credential []byte      `json:"credential"`
		QRCode     []byte      `json:"qr_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ticket.ID, resp.Ticket.ID)
	assert.Equal(t, []byte("signed"), resp.Credential)
	// PNG magic bytes
	require.True(t, len(resp.QRCode) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, resp.QRCode[:4])
}

func TestGetFlightStatistics(t *testing.T) {
	router := newTestRouter(2)
	createTicket(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/flights/F1/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_seats":2,"reserved_seats":1}`, rec.Body.String())
}
