package account

import (
	"context"
	"errors"
	"testing"

	"github.com/kirinyoku/bus-go/internal/domain"
	"github.com/kirinyoku/bus-go/internal/recordstore"
	"github.com/kirinyoku/bus-go/internal/repository"
	filerepo "github.com/kirinyoku/bus-go/internal/repository/file"
)

func newTestService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()

	records, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	store := filerepo.NewStore(records).Repositories()
	return New(store), store
}

func TestRegisterPassengerRejectsNonNumericAge(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterPassenger(ctx, PassengerRegistration{
		Name:     "Alice",
		Age:      "abc",
		ID:       "123456789012",
		Password: "secret",
	})

	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "age" {
		t.Fatalf("err = %v, want age ValidationError", err)
	}
	if _, err := store.Users.Get(ctx, "123456789012"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("user was written: %v", err)
	}
}

func TestRegisterPassengerValidation(t *testing.T) {
	valid := PassengerRegistration{Name: "Alice", Age: "30", ID: "123456789012", Password: "pw"}

	tests := []struct {
		name  string
		edit  func(*PassengerRegistration)
		field string
	}{
		{name: "blank name", edit: func(r *PassengerRegistration) { r.Name = "  " }, field: "name"},
		{name: "age zero", edit: func(r *PassengerRegistration) { r.Age = "0" }, field: "age"},
		{name: "age too high", edit: func(r *PassengerRegistration) { r.Age = "151" }, field: "age"},
		{name: "short id", edit: func(r *PassengerRegistration) { r.ID = "12345" }, field: "id"},
		{name: "id with letters", edit: func(r *PassengerRegistration) { r.ID = "12345678901a" }, field: "id"},
		{name: "empty password", edit: func(r *PassengerRegistration) { r.Password = "" }, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			in := valid
			tt.edit(&in)

			_, err := svc.RegisterPassenger(context.Background(), in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("err = %v, want ValidationError on %s", err, tt.field)
			}
		})
	}
}

func TestPassengerLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := PassengerRegistration{Name: "Alice", Age: "30", ID: "123456789012", Password: "secret"}
	p, err := svc.RegisterPassenger(ctx, in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(p.PasswordHash) != 64 || p.PasswordHash == in.Password {
		t.Fatalf("password not digested: %q", p.PasswordHash)
	}

	if _, err := svc.RegisterPassenger(ctx, in); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyRegistered", err)
	}

	taken, err := svc.PassengerIDTaken(ctx, in.ID)
	if err != nil || !taken {
		t.Fatalf("PassengerIDTaken = %v, %v", taken, err)
	}

	if _, err := svc.LoginPassenger(ctx, in.ID, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.LoginPassenger(ctx, in.ID, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := svc.LoginPassenger(ctx, "999999999999", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown id err = %v", err)
	}

	if _, ok, err := svc.LookupPassenger(ctx, in.ID, " alice "); err != nil || !ok {
		t.Fatalf("LookupPassenger case-insensitive = %v, %v", ok, err)
	}
	if _, ok, _ := svc.LookupPassenger(ctx, in.ID, "Bob"); ok {
		t.Fatal("LookupPassenger matched the wrong name")
	}
}

func TestRegisterDriver(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := DriverRegistration{Name: "Ravi", Age: "40", ID: "210987654321", License: "MH1220230001234X", Password: "pw"}
	if _, err := svc.RegisterDriver(ctx, in); err != nil {
		t.Fatalf("register: %v", err)
	}

	again := in
	again.License = "KA0120190009876Y"
	if _, err := svc.RegisterDriver(ctx, again); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate id err = %v", err)
	}

	other := in
	other.ID = "111111111111"
	if _, err := svc.RegisterDriver(ctx, other); !errors.Is(err, ErrLicenseRegistered) {
		t.Fatalf("duplicate license err = %v", err)
	}

	young := in
	young.ID, young.License, young.Age = "222222222222", "DL0420210005555Z", "24"
	var verr *domain.ValidationError
	if _, err := svc.RegisterDriver(ctx, young); !errors.As(err, &verr) || verr.Field != "age" {
		t.Fatalf("underage err = %v", err)
	}

	if _, err := svc.LoginDriver(ctx, in.ID, "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	// SHA3-256 of the empty string.
	const empty = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := HashPassword(""); got != empty {
		t.Fatalf("HashPassword(\"\") = %s", got)
	}
}
