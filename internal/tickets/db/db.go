// Package db implements the ticket record store over MongoDB. Valid and
// soft-deleted tickets live in two separate collections so a ticket is
// always in exactly one partition.
package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/models"
)

// TicketStore is the storage contract the ticket service is written
// against. The mongo-backed DB below is the one real implementation; tests
// substitute in-memory fakes.
type TicketStore interface {
	List(ctx context.Context, includeNonvalid bool, flightID string) ([]models.Ticket, error)
	GetByID(ctx context.Context, id primitive.ObjectID, allowNonvalid bool) (*models.Ticket, error)
	GetByToken(ctx context.Context, token string, allowNonvalid bool) (*models.Ticket, error)
	Create(ctx context.Context, ticket models.Ticket) (primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Update(ctx context.Context, id primitive.ObjectID, update models.Passenger, paths []string) error
	CountActiveByFlight(ctx context.Context, flightID string) (int32, error)
}

type DB struct {
	Mongo *mongo.Database
}

func (d *DB) tickets() *mongo.Collection {
	return d.Mongo.Collection("tickets")
}

func (d *DB) deletedTickets() *mongo.Collection {
	return d.Mongo.Collection("tickets-deleted")
}

func storageError(err error) error {
	return apperrors.Internal("error interacting with database", err)
}

// List returns the valid tickets, optionally filtered by flight. When
// includeNonvalid is set the whole deleted partition is appended,
// unfiltered.
func (d *DB) List(ctx context.Context, includeNonvalid bool, flightID string) ([]models.Ticket, error) {
	filter := bson.M{}
	if flightID != "" {
		filter["flight_id"] = bson.M{"$eq": flightID}
	}

	cursor, err := d.tickets().Find(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	var tickets []models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, storageError(err)
	}

	if includeNonvalid {
		cursor, err := d.deletedTickets().Find(ctx, bson.M{})
		if err != nil {
			return nil, storageError(err)
		}
		var deleted []models.Ticket
		if err := cursor.All(ctx, &deleted); err != nil {
			return nil, storageError(err)
		}
		tickets = append(tickets, deleted...)
	}

	return tickets, nil
}

func (d *DB) findOne(ctx context.Context, filter bson.M, allowNonvalid bool) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.tickets().FindOne(ctx, filter).Decode(&ticket)
	if err == nil {
		return &ticket, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, storageError(err)
	}

	if allowNonvalid {
		err = d.deletedTickets().FindOne(ctx, filter).Decode(&ticket)
		if err == nil {
			return &ticket, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, storageError(err)
		}
	}

	return nil, apperrors.NotFound("ticket not found")
}

func (d *DB) GetByID(ctx context.Context, id primitive.ObjectID, allowNonvalid bool) (*models.Ticket, error) {
	return d.findOne(ctx, bson.M{"_id": id}, allowNonvalid)
}

func (d *DB) GetByToken(ctx context.Context, token string, allowNonvalid bool) (*models.Ticket, error) {
	return d.findOne(ctx, bson.M{"url": token}, allowNonvalid)
}

// Create inserts into the valid partition. Identifier, url token and status
// have already been assigned by the caller.
func (d *DB) Create(ctx context.Context, ticket models.Ticket) (primitive.ObjectID, error) {
	res, err := d.tickets().InsertOne(ctx, ticket)
	if err != nil {
		return primitive.NilObjectID, storageError(err)
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// Delete moves a ticket from the valid partition to the deleted one,
// flipping its status on the way. The two collection writes are not atomic:
// a failure between them leaves the ticket present in both partitions.
func (d *DB) Delete(ctx context.Context, id primitive.ObjectID) error {
	ticket, err := d.GetByID(ctx, id, false)
	if err != nil {
		return err
	}

	ticket.TicketStatus = models.StatusDeleted
	if _, err := d.deletedTickets().InsertOne(ctx, ticket); err != nil {
		return storageError(err)
	}
	if _, err := d.tickets().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return storageError(err)
	}

	return nil
}

// Update applies a sparse update of passenger fields to the valid
// partition. An id that matches nothing is not an error here; callers
// re-read to observe the effect.
func (d *DB) Update(ctx context.Context, id primitive.ObjectID, update models.Passenger, paths []string) error {
	doc, err := buildUpdateDocument(update, paths)
	if err != nil {
		return err
	}

	if _, err := d.tickets().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": doc}); err != nil {
		return storageError(err)
	}
	return nil
}

// buildUpdateDocument translates field-mask paths into a $set document.
// Only the five passenger leaves are assignable; anything else rejects the
// whole update, naming the offending path.
func buildUpdateDocument(p models.Passenger, paths []string) (bson.M, error) {
	doc := bson.M{}
	for _, path := range paths {
		switch path {
		case "passenger.ssn":
			doc[path] = p.SSN
		case "passenger.name":
			doc[path] = p.Name
		case "passenger.surname":
			doc[path] = p.Surname
		case "passenger.birth_date":
			doc[path] = p.BirthDate
		case "passenger.email":
			doc[path] = p.Email
		default:
			return nil, apperrors.InvalidArgument(fmt.Sprintf("invalid update path %q", path))
		}
	}
	return doc, nil
}

func (d *DB) CountActiveByFlight(ctx context.Context, flightID string) (int32, error) {
	count, err := d.tickets().CountDocuments(ctx, bson.M{"flight_id": flightID})
	if err != nil {
		return 0, storageError(err)
	}
	return int32(count), nil
}
