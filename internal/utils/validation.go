package utils

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if !govalidator.IsEmail(email) {
		return fmt.Errorf("the provided email is not valid")
	}

	return nil
}

// ValidateURL accepts absolute URLs with a scheme, which covers http origins as well as redis:// and amqp:// DSNs.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if !govalidator.IsRequestURL(rawURL) {
		return fmt.Errorf("%q is not a valid absolute url", rawURL)
	}

	return nil
}
