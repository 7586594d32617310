package session

import (
	"context"
	"fmt"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/service/account"
	"github.com/kirinyoku/bus-go/internal/service/fleet"
)

const promptDriverDashboard = "\n---------- DASHBOARD ----------\n1. Register a bus\n2. Insert a trip\n3. Logout\nChoose:"

func (s *Session) driverMenu(ctx context.Context) error {
	for {
		choice, err := s.ask(ctx, promptMain)
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			if err := s.registerDriver(ctx); err != nil {
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

		d, err := s.loginDriver(ctx)
		if err != nil {
			return err
		}
		if d == nil {
			continue
		}

		if err := s.driverDashboard(ctx, d); err != nil {
			return err
		}
	}
}

func (s *Session) registerDriver(ctx context.Context) error {
	var in account.DriverRegistration

	name, err := s.askUntil(ctx, "Enter your name:", func(v string) error {
		_, err := account.ValidateName(v)
		return err
	})
	if err != nil {
		return err
	}
	in.Name = name

	in.Age, err = s.askUntil(ctx, "Enter your age:", func(v string) error {
		_, err := account.ParseDriverAge(v)
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

		taken, err := s.svc.Accounts.DriverIDTaken(ctx, id)
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

	for {
		license, err := s.askUntil(ctx, "Enter your 16 character license number:", account.ValidateLicense)
		if err != nil {
			return err
		}

		taken, err := s.svc.Accounts.LicenseTaken(ctx, license)
		if err != nil {
			return s.report(ctx, err)
		}
		if !taken {
			in.License = license
			break
		}

		retry, err := s.confirmTypo(ctx, "license")
		if err != nil || !retry {
			return err
		}
	}

	in.Password, err = s.askUntil(ctx, "Enter a strong password:", account.ValidatePassword)
	if err != nil {
		return err
	}

	d, err := s.svc.Accounts.RegisterDriver(ctx, in)
	if err != nil {
		return s.report(ctx, err)
	}

	s.log.Info("driver registered", "driver_id", d.ID)
	return s.tell(ctx, "Registration successful!")
}

func (s *Session) loginDriver(ctx context.Context) (*domain.Driver, error) {
	id, err := s.ask(ctx, "Enter your id:")
	if err != nil {
		return nil, err
	}
	password, err := s.ask(ctx, "Enter your password:")
	if err != nil {
		return nil, err
	}

	d, err := s.svc.Accounts.LoginDriver(ctx, id, password)
	if err != nil {
		return nil, s.report(ctx, err)
	}

	s.log.Info("driver logged in", "driver_id", d.ID)
	return d, s.tell(ctx, "Login successful!")
}

func (s *Session) driverDashboard(ctx context.Context, d *domain.Driver) error {
	for {
		choice, err := s.ask(ctx, promptDriverDashboard)
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = s.registerBus(ctx, d.ID)
		case "2":
			err = s.insertTrip(ctx, d.ID)
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

func (s *Session) registerBus(ctx context.Context, operatorID string) error {
	busID, err := s.ask(ctx, "Enter bus number (unique id):")
	if err != nil {
		return err
	}

	exists, err := s.svc.Fleet.BusExists(ctx, busID)
	if err != nil {
		return s.report(ctx, err)
	}
	if exists {
		return s.report(ctx, fleet.ErrBusExists)
	}

	rows, err := s.ask(ctx, "Enter number of seat rows:")
	if err != nil {
		return err
	}
	cols, err := s.ask(ctx, "Enter number of seat columns:")
	if err != nil {
		return err
	}

	bus, err := s.svc.Fleet.RegisterBus(ctx, operatorID, fleet.BusRegistration{ID: busID, Rows: rows, Cols: cols})
	if err != nil {
		return s.report(ctx, err)
	}

	return s.tell(ctx, fmt.Sprintf("Bus %s registered with %d seats.", bus.ID, bus.Capacity()))
}

func (s *Session) insertTrip(ctx context.Context, operatorID string) error {
	var in fleet.TripInsertion

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Enter bus number:", &in.BusID},
		{"Enter source:", &in.Source},
		{"Enter destination:", &in.Destination},
		{"Enter distance in km:", &in.DistanceKm},
		{"Enter departure (YYYY-MM-DD HH:MM):", &in.Departure},
	}
	for _, f := range fields {
		v, err := s.ask(ctx, f.prompt)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	trip, err := s.svc.Fleet.InsertTrip(ctx, operatorID, in)
	if err != nil {
		return s.report(ctx, err)
	}

	return s.tell(ctx, "Trip inserted successfully with trip id "+trip.ID+".")
}
