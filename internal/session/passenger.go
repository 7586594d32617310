package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/pricing"
	"github.com/kirinyoku/bus-go/internal/service/account"
)

const promptPassengerDashboard = "\n---------- DASHBOARD ----------\n1. View bookings\n2. Reserve a seat\n3. Logout\nChoose:"

func (s *Session) passengerMenu(ctx context.Context) error {
	for {
		choice, err := s.ask(ctx, promptMain)
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			if err := s.registerPassenger(ctx); err != nil {
				return err
			}
			if err := s.tell(ctx, "Please log in to continue."); err != nil {
				return err
			}
		case "2":
		case "3":
			return nil
		default:
			if err := s.tell(ctx, msgMistyped); err != nil {
				return err
			}
			continue
		}

		p, err := s.loginPassenger(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			continue
		}

		if err := s.passengerDashboard(ctx, p); err != nil {
			return err
		}
	}
}

func (s *Session) registerPassenger(ctx context.Context) error {
	var in account.PassengerRegistration

	name, err := s.askUntil(ctx, "Enter your name:", func(v string) error {
		_, err := account.ValidateName(v)
		return err
	})
	if err != nil {
		return err
	}
	in.Name = name

	in.Age, err = s.askUntil(ctx, "Enter your age:", func(v string) error {
		_, err := account.ParsePassengerAge(v)
		return err
	})
	if err != nil {
		return err
	}

	for {
		id, err := s.askUntil(ctx, "Enter your 12 digit id:", account.ValidateID)
		if err != nil {
			return err
		}

		taken, err := s.svc.Accounts.PassengerIDTaken(ctx, id)
		if err != nil {
			return s.report(ctx, err)
		}
		if !taken {
			in.ID = id
			break
		}

		retry, err := s.confirmTypo(ctx, "id")
		if err != nil || !retry {
			return err
		}
	}

	in.Password, err = s.askUntil(ctx, "Enter a strong password:", account.ValidatePassword)
	if err != nil {
		return err
	}

	p, err := s.svc.Accounts.RegisterPassenger(ctx, in)
	if err != nil {
		return s.report(ctx, err)
	}

	s.log.Info("passenger registered", "passenger_id", p.ID)
	return s.tell(ctx, "Registration successful!")
}

// loginPassenger returns nil when the credentials were rejected.
func (s *Session) loginPassenger(ctx context.Context) (*domain.Passenger, error) {
	id, err := s.ask(ctx, "Enter your id:")
	if err != nil {
		return nil, err
	}
	password, err := s.ask(ctx, "Enter your password:")
	if err != nil {
		return nil, err
	}

	p, err := s.svc.Accounts.LoginPassenger(ctx, id, password)
	if err != nil {
		return nil, s.report(ctx, err)
	}

	s.log.Info("passenger logged in", "passenger_id", p.ID)
	return p, s.tell(ctx, "Login successful!")
}

func (s *Session) passengerDashboard(ctx context.Context, p *domain.Passenger) error {
	for {
		choice, err := s.ask(ctx, promptPassengerDashboard)
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.viewBookings(ctx, p.ID)
		case "2":
			err = s.svc.Booking.Run(ctx, s.conv, s.clientKey)
		case "3":
			return nil
		default:
			err = s.tell(ctx, msgMistyped)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) viewBookings(ctx context.Context, passengerID string) error {
	bookings, err := s.svc.Query.PassengerBookings(ctx, passengerID)
	if err != nil {
		return s.report(ctx, err)
	}
	return s.tell(ctx, renderBookings(bookings))
}

func renderBookings(bookings []domain.Booking) string {
	if len(bookings) == 0 {
		return "No bookings found under your id."
	}

	var b strings.Builder
	b.WriteString("Your bookings:")
	for i, bk := range bookings {
		fmt.Fprintf(&b, "\n%d. Trip %s, bus %s, seat %d, paid %s",
			i+1, bk.TripID, bk.BusID, bk.SeatNumber, pricing.FormatCents(bk.FinalCents))
	}
	return b.String()
}
