package validator

import (
	"errors"
	"net/mail"
	"strings"
)

// Address checks that email is a single bare mailbox such as
// "ops@example.com". Display names are rejected; the SMTP envelope needs the
// plain address.
func Address(email string) error {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.New("invalid email format")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return errors.New("invalid email format")
	}
	if addr.Address != email {
		return errors.New("email must not carry a display name")
	}

	if !strings.Contains(parts[1], ".") {
		return errors.New("invalid email domain")
	}

	return nil
}
