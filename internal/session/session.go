// Package session runs the menu dialog of one connected client: role choice,
// registration, login and the passenger and driver dashboards.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/service"
	"github.com/kirinyoku/bus-go/internal/service/account"
	"github.com/kirinyoku/bus-go/internal/service/booking"
	"github.com/kirinyoku/bus-go/internal/service/fleet"
)

const (
	msgWelcome  = "Welcome to the Bus Reservation System"
	msgMistyped = "Oops! you mistyped. Try again."
	msgFailure  = "Something went wrong, please try again."
	msgGoodbye  = "Goodbye!"

	promptRole = "\n---------- WHO ARE YOU? ----------\n1. Passenger (default)\n2. Driver\nChoose:"
	promptMain = "\n---------- MAIN MENU ----------\n1. Register\n2. Login\n3. Exit\nChoose:"
)

type Session struct {
	id        string
	conv      booking.Conversation
	svc       *service.Services
	clientKey string
	log       *slog.Logger
}

// New binds a session to one conversation. clientKey identifies the client
// for booking rate limits, usually its IP.
func New(conv booking.Conversation, svc *service.Services, clientKey string, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		conv:      conv,
		svc:       svc,
		clientKey: clientKey,
		log:       log.With("session_id", id),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Run drives the dialog until the client chooses to exit. Any error comes
// from the conversation, typically a disconnect.
func (s *Session) Run(ctx context.Context) error {
	if err := s.conv.Tell(ctx, msgWelcome); err != nil {
		return err
	}

	role, err := s.ask(ctx, promptRole)
	if err != nil {
		return err
	}

	if role == "2" {
		s.log.Debug("driver session")
		err = s.driverMenu(ctx)
	} else {
		s.log.Debug("passenger session")
		err = s.passengerMenu(ctx)
	}
	if err != nil {
		return err
	}

	return s.conv.Tell(ctx, msgGoodbye)
}

func (s *Session) ask(ctx context.Context, prompt string) (string, error) {
	reply, err := s.conv.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (s *Session) tell(ctx context.Context, text string) error {
	return s.conv.Tell(ctx, text)
}

// askUntil repeats prompt until check accepts the reply. Validation errors
// are reported and the prompt repeats; any other check error is returned.
func (s *Session) askUntil(ctx context.Context, prompt string, check func(string) error) (string, error) {
	for {
		reply, err := s.ask(ctx, prompt)
		if err != nil {
			return "", err
		}

		err = check(reply)
		if err == nil {
			return reply, nil
		}

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return "", err
		}
		if err := s.tell(ctx, "Invalid input: "+verr.Reason+"."); err != nil {
			return "", err
		}
	}
}

// confirmTypo asks whether a taken identifier was mistyped.
func (s *Session) confirmTypo(ctx context.Context, what string) (bool, error) {
	reply, err := s.ask(ctx, "This "+what+" is already registered.\nIs it a typo? (y/n):")
	if err != nil {
		return false, err
	}
	if strings.EqualFold(reply, "y") {
		return true, s.tell(ctx, "No worries, enter it again.")
	}
	return false, s.tell(ctx, "You're already registered. Please log in instead.")
}

// report tells the client what went wrong with a service call. Storage
// failures are logged and reported without detail.
func (s *Session) report(ctx context.Context, err error) error {
	var verr *domain.ValidationError

	var msg string
	switch {
	case errors.As(err, &verr):
		msg = "Invalid input: " + verr.Reason + "."
	case errors.Is(err, account.ErrAlreadyRegistered):
		msg = "This id is already registered."
	case errors.Is(err, account.ErrLicenseRegistered):
		msg = "This license is already registered."
	case errors.Is(err, account.ErrInvalidCredentials):
		msg = "Invalid id or password."
	case errors.Is(err, fleet.ErrBusExists):
		msg = "This bus is already registered."
	case errors.Is(err, fleet.ErrBusNotFound):
		msg = "Bus not found."
	case errors.Is(err, fleet.ErrNotBusOperator):
		msg = "This bus is registered to another driver."
	case errors.Is(err, fleet.ErrScheduleConflict):
		msg = "This bus already has a trip within 60 minutes of that time."
	default:
		s.log.Error("session request failed", "error", err)
		msg = msgFailure
	}

	return s.tell(ctx, msg)
}
