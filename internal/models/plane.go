package models

// Plane is the subset of the flightmngr plane record this service cares
// about: the id and how many passengers the cabin seats.
type Plane struct {
	ID            string `json:"id"`
	CabinCapacity int32  `json:"cabin_capacity"`
}

// FlightStatistics is the seat occupancy summary returned by the flight
// statistics endpoint.
type FlightStatistics struct {
	TotalSeats    int32 `json:"total_seats"`
	ReservedSeats int32 `json:"reserved_seats"`
}
