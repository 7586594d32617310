package httpgin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/service"
	"github.com/kirinyoku/bus-go/internal/service/account"
	"github.com/kirinyoku/bus-go/internal/service/query"
)

// NewRouter exposes a read-only view of trips, seats and bookings for
// operators. Booking itself only happens over the TCP dialog.
func NewRouter(
	svcs *service.Services,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), RequestID(), AccessLog(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/trips", handleListTrips(svcs))
	r.GET("/trips/:id", handleGetTrip(svcs))
	r.GET("/trips/:id/seats", handleSeatChart(svcs))
	r.GET("/passengers/:id/bookings", handlePassengerBookings(svcs))

	return r
}

// handleListTrips lists every trip, or only reservable ones with
// ?reservable=true.
func handleListTrips(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("reservable") == "true" {
			listings, err := svcs.Query.ReservableTrips(c.Request.Context())
			if err != nil {
				respondErr(c, err)
				return
			}
			out := make([]TripResponse, 0, len(listings))
			for _, l := range listings {
				out = append(out, toTripResponse(l.Trip, l.Discounted))
			}
			writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
			return
		}

		trips, err := svcs.Query.Trips(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]TripResponse, 0, len(trips))
		for _, t := range trips {
			out = append(out, toTripResponse(t, false))
		}
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

func handleGetTrip(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svcs.Query.Trip(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, toTripResponse(*t, false), "public, max-age=60", true)
	}
}

func handleSeatChart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seats, err := svcs.Query.SeatChart(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]SeatResponse, 0, len(seats))
		for _, s := range seats {
			out = append(out, toSeatResponse(s))
		}
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=5", true)
	}
}

func handlePassengerBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := account.ValidateID(id); err != nil {
			respondErr(c, err)
			return
		}

		bookings, err := svcs.Query.PassengerBookings(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]BookingResponse, 0, len(bookings))
		for _, b := range bookings {
			out = append(out, toBookingResponse(b))
		}
		writeJSONWithCache(c, http.StatusOK, out, "private, max-age=15", true)
	}
}

// --- Helpers ---

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Error()})
	case errors.Is(err, query.ErrTripNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "trip not found"})
	case errors.Is(err, query.ErrBusNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "bus not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
