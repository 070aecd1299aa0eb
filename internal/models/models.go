package models

// Coordinate is a stored point on the city grid. Latitude and longitude are
// non-negative integers; a coordinate never changes once recorded.
type Coordinate struct {
	ID        int `json:"id"`
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}

type Driver struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Order is a scheduled pickup/delivery job assigned to a driver. Its active
// window is [StartTime, EndTime], inclusive on both ends.
type Order struct {
	ID               int        `json:"id"`
	Title            string     `json:"title"`
	Day              string     `json:"day"` // YYYY-MM-DD
	StartTime        TimeOfDay  `json:"start_time"`
	EndTime          TimeOfDay  `json:"end_time"`
	DriverID         int        `json:"driver_id"`
	PickupPoint      Coordinate `json:"pickup_point"`
	DestinationPoint Coordinate `json:"destination_point"`
}

// NewOrder builds an order, filling in EndTime when the caller leaves it
// unset. The default is applied here, at construction time, and never again.
func NewOrder(title, day string, start TimeOfDay, end *TimeOfDay, driverID int, pickup, destination Coordinate) Order {
	o := Order{
		Title:            title,
		Day:              day,
		StartTime:        start,
		DriverID:         driverID,
		PickupPoint:      pickup,
		DestinationPoint: destination,
	}
	if end != nil {
		o.EndTime = *end
	} else {
		o.EndTime = DefaultEndTime(start)
	}
	return o
}

// Covers reports whether t falls inside the order's active window.
func (o Order) Covers(t TimeOfDay) bool {
	return o.StartTime <= t && t <= o.EndTime
}

// DriverLocation is one entry of the live feed snapshot. It is never
// persisted here; a fresh snapshot is pulled per resolution. The feed encodes
// lat/lng as either JSON numbers or numeric strings.
type DriverLocation struct {
	ID         int     `json:"id"`
	Lat        FlexInt `json:"lat"`
	Lng        FlexInt `json:"lng"`
	LastUpdate string  `json:"lastUpdate"`
}
