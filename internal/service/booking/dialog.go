package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
	"github.com/kirinyoku/bus-go/internal/service/query"
)

// Conversation is one client's side of the dialog. Ask sends a prompt and
// waits for a non-empty reply; Tell sends text that expects no reply.
type Conversation interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Tell(ctx context.Context, text string) error
}

type state int

const (
	stateSelectingTrip state = iota
	stateSelectingSeat
	stateCollectingPassenger
	stateConfirming
	stateAskingAnother
	stateDone
)

const (
	cmdExit       = "e"
	cmdRefresh    = "r"
	cmdChangeTrip = "c"
	cmdViewSeats  = "v"
	cmdYes        = "y"
	cmdNo         = "n"
)

// defaultChartCols lays out a chart whose bus geometry could not be read.
const defaultChartCols = 4

const (
	promptTrip      = "Enter a trip id to book, 'r' to refresh the list or 'e' to exit:"
	promptSeat      = "Enter a seat number, 'v' to view seats, 'c' to change trip or 'e' to exit:"
	promptName      = "Passenger name ('c' to choose another seat, 'e' to exit):"
	promptID        = "Passenger id ('c' to choose another seat, 'e' to exit):"
	promptConfirm   = "Confirm booking? (y/n):"
	promptAnother   = "Book another seat on this trip? (y/n):"
	msgExit         = "Thanks, exiting! Visit again."
	msgFailure      = "Something went wrong, please try again."
	msgAnswerYesNo  = "Please answer y or n."
	msgNotConfirmed = "Booking not confirmed."
)

type dialog struct {
	s         *Service
	conv      Conversation
	clientKey string

	listings []domain.TripListing
	relist   bool

	trip      domain.Trip
	chartCols int
	showChart bool

	seat      domain.Seat
	passenger domain.Passenger
	quote     pricing.Quote
}

// Run drives one reservation dialog until the client exits. It returns nil on
// a normal exit and the conversation's error when the client goes away.
func (s *Service) Run(ctx context.Context, conv Conversation, clientKey string) error {
	d := &dialog{
		s:         s,
		conv:      conv,
		clientKey: clientKey,
		relist:    true,
	}

	st := stateSelectingTrip
	for st != stateDone {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch st {
		case stateSelectingTrip:
			st, err = d.selectTrip(ctx)
		case stateSelectingSeat:
			st, err = d.selectSeat(ctx)
		case stateCollectingPassenger:
			st, err = d.collectPassenger(ctx)
		case stateConfirming:
			st, err = d.confirm(ctx)
		case stateAskingAnother:
			st, err = d.askAnother(ctx)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *dialog) selectTrip(ctx context.Context) (state, error) {
	if d.relist {
		listings, err := d.s.query.ReservableTrips(ctx)
		if err != nil {
			return d.fail(ctx, err, stateDone)
		}
		d.listings = listings
		d.relist = false

		if err := d.conv.Tell(ctx, renderTrips(listings, d.s.loc)); err != nil {
			return stateDone, err
		}
	}

	reply, err := d.ask(ctx, promptTrip)
	if err != nil {
		return stateDone, err
	}

	switch {
	case isCommand(reply, cmdExit):
		return d.exit(ctx)
	case isCommand(reply, cmdRefresh):
		d.relist = true
		return stateSelectingTrip, nil
	}

	for _, l := range d.listings {
		if strings.EqualFold(l.Trip.ID, reply) {
			d.trip = l.Trip
			d.chartCols = d.busCols(ctx, l.Trip.BusID)
			d.showChart = true
			return stateSelectingSeat, nil
		}
	}

	return d.tell(ctx, "Invalid trip id. Please try again.", stateSelectingTrip)
}

func (d *dialog) selectSeat(ctx context.Context) (state, error) {
	if d.showChart {
		seats, err := d.s.query.SeatChart(ctx, d.trip.ID)
		if err != nil {
			return d.chartFailed(ctx, err)
		}
		d.showChart = false

		if err := d.conv.Tell(ctx, renderChart(d.trip.ID, seats, d.chartCols)); err != nil {
			return stateDone, err
		}
	}

	reply, err := d.ask(ctx, promptSeat)
	if err != nil {
		return stateDone, err
	}

	switch {
	case isCommand(reply, cmdExit):
		return d.exit(ctx)
	case isCommand(reply, cmdChangeTrip):
		d.relist = true
		return stateSelectingTrip, nil
	case isCommand(reply, cmdViewSeats):
		d.showChart = true
		return stateSelectingSeat, nil
	}

	number, err := strconv.Atoi(reply)
	if err != nil {
		return d.tell(ctx, "Invalid seat number. Please try again.", stateSelectingSeat)
	}

	seats, err := d.s.query.SeatChart(ctx, d.trip.ID)
	if err != nil {
		return d.chartFailed(ctx, err)
	}
	for _, seat := range seats {
		if seat.Number == number && seat.Free() {
			d.seat = seat
			return stateCollectingPassenger, nil
		}
	}

	return d.tell(ctx, fmt.Sprintf("Seat %d is not available. Please choose another seat.", number), stateSelectingSeat)
}

func (d *dialog) collectPassenger(ctx context.Context) (state, error) {
	name, err := d.ask(ctx, promptName)
	if err != nil {
		return stateDone, err
	}
	if next, ok := d.passengerEscape(name); ok {
		return d.leavePassenger(ctx, next)
	}

	id, err := d.ask(ctx, promptID)
	if err != nil {
		return stateDone, err
	}
	if next, ok := d.passengerEscape(id); ok {
		return d.leavePassenger(ctx, next)
	}

	p, ok, err := d.s.passengers.LookupPassenger(ctx, id, name)
	if err != nil {
		return d.fail(ctx, err, stateCollectingPassenger)
	}
	if !ok {
		return d.tell(ctx, "Passenger not registered. Check the name and id and try again.", stateCollectingPassenger)
	}

	d.passenger = p
	d.quote = d.s.Quote(d.trip, d.seat)

	return d.tell(ctx, renderQuote(d.trip, d.seat, d.passenger, d.quote), stateConfirming)
}

func (d *dialog) passengerEscape(reply string) (state, bool) {
	switch {
	case isCommand(reply, cmdChangeTrip):
		return stateSelectingSeat, true
	case isCommand(reply, cmdExit):
		return stateDone, true
	}
	return 0, false
}

func (d *dialog) leavePassenger(ctx context.Context, next state) (state, error) {
	if next == stateDone {
		return d.exit(ctx)
	}
	d.showChart = true
	return next, nil
}

func (d *dialog) confirm(ctx context.Context) (state, error) {
	reply, err := d.ask(ctx, promptConfirm)
	if err != nil {
		return stateDone, err
	}

	switch {
	case isCommand(reply, cmdNo):
		d.showChart = true
		return d.tell(ctx, msgNotConfirmed, stateSelectingSeat)
	case !isCommand(reply, cmdYes):
		return d.tell(ctx, msgAnswerYesNo, stateConfirming)
	}

	b, err := d.s.Commit(ctx, CommitRequest{
		Trip:       d.trip,
		SeatNumber: d.seat.Number,
		Passenger:  d.passenger,
		Quote:      d.quote,
		ClientKey:  d.clientKey,
	})
	switch {
	case err == nil:
		return d.tell(ctx, fmt.Sprintf("Seat %d on trip %s booked for %s. Amount paid: %s.",
			b.SeatNumber, b.TripID, b.PassengerName, pricing.FormatCents(b.FinalCents)), stateAskingAnother)
	case errors.Is(err, ErrTripNotFound):
		d.relist = true
		return d.tell(ctx, fmt.Sprintf("Trip %s is no longer available.", d.trip.ID), stateSelectingTrip)
	case errors.Is(err, ErrTripDeparted):
		d.relist = true
		return d.tell(ctx, fmt.Sprintf("Trip %s has already departed.", d.trip.ID), stateSelectingTrip)
	case errors.Is(err, ErrRateLimited):
		return d.tell(ctx, "Too many bookings from this client. Please try again later.", stateSelectingSeat)
	case errors.Is(err, ErrSeatTaken):
		d.showChart = true
		return d.tell(ctx, fmt.Sprintf("Sorry, seat %d was just booked by someone else.", d.seat.Number), stateSelectingSeat)
	default:
		return d.fail(ctx, err, stateSelectingSeat)
	}
}

func (d *dialog) askAnother(ctx context.Context) (state, error) {
	reply, err := d.ask(ctx, promptAnother)
	if err != nil {
		return stateDone, err
	}

	switch {
	case isCommand(reply, cmdYes):
		d.showChart = true
		return stateSelectingSeat, nil
	case isCommand(reply, cmdNo):
		d.relist = true
		return stateSelectingTrip, nil
	default:
		return d.tell(ctx, msgAnswerYesNo, stateAskingAnother)
	}
}

func (d *dialog) ask(ctx context.Context, prompt string) (string, error) {
	reply, err := d.conv.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (d *dialog) tell(ctx context.Context, text string, next state) (state, error) {
	if err := d.conv.Tell(ctx, text); err != nil {
		return stateDone, err
	}
	return next, nil
}

func (d *dialog) exit(ctx context.Context) (state, error) {
	return d.tell(ctx, msgExit, stateDone)
}

// fail logs a storage failure and reports it to the client without detail.
func (d *dialog) fail(ctx context.Context, err error, next state) (state, error) {
	d.s.log.Error("booking dialog failed", "trip_id", d.trip.ID, "error", err)
	return d.tell(ctx, msgFailure, next)
}

func (d *dialog) chartFailed(ctx context.Context, err error) (state, error) {
	if errors.Is(err, query.ErrTripNotFound) {
		d.relist = true
		return d.tell(ctx, fmt.Sprintf("Trip %s has no seats on record.", d.trip.ID), stateSelectingTrip)
	}
	d.relist = true
	return d.fail(ctx, err, stateSelectingTrip)
}

func (d *dialog) busCols(ctx context.Context, busID string) int {
	bus, err := d.s.query.Bus(ctx, busID)
	if err != nil || bus.Cols <= 0 {
		return defaultChartCols
	}
	return bus.Cols
}

func isCommand(reply, cmd string) bool {
	return strings.EqualFold(reply, cmd)
}
