package account

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"

	"github.com/kirinyoku/bus-go/internal/domain"
)

const (
	IDLength      = 12
	LicenseLength = 16

	MinPassengerAge = 1
	MaxPassengerAge = 150
	MinDriverAge    = 25
	MaxDriverAge    = 60
)

func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("name", "must not be blank")
	}
	return name, nil
}

func ParsePassengerAge(s string) (int, error) {
	return parseAge(s, MinPassengerAge, MaxPassengerAge)
}

func ParseDriverAge(s string) (int, error) {
	return parseAge(s, MinDriverAge, MaxDriverAge)
}

func parseAge(s string, lo, hi int) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.NewValidationError("age", "must be a number")
	}
	if age < lo || age > hi {
		return 0, domain.NewValidationError("age", "must be between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
	}
	return age, nil
}

// ValidateID checks a passenger or driver id: exactly IDLength ASCII digits.
func ValidateID(id string) error {
	if len(id) != IDLength {
		return domain.NewValidationError("id", "must be "+strconv.Itoa(IDLength)+" digits")
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return domain.NewValidationError("id", "must be "+strconv.Itoa(IDLength)+" digits")
		}
	}
	return nil
}

func ValidateLicense(license string) error {
	if utf8.RuneCountInString(license) != LicenseLength {
		return domain.NewValidationError("license", "must be "+strconv.Itoa(LicenseLength)+" characters")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return domain.NewValidationError("password", "must not be empty")
	}
	return nil
}

// HashPassword returns the hex SHA3-256 digest stored in place of a password.
func HashPassword(password string) string {
	sum := sha3.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
