package redisrepo

import "fmt"

const ns = "busgo:v1"

func KeyTripList() string {
	return ns + ":trips"
}

func KeySeatChart(tripID string) string {
	return fmt.Sprintf("%s:trip:%s:seats", ns, tripID)
}

func KeyPassengerBookings(passengerID string) string {
	return fmt.Sprintf("%s:passenger:%s:bookings", ns, passengerID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelTripsChanged() string {
	return ns + ":trips:changed"
}
