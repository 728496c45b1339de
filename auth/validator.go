package auth

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Phone       string `json:"phone" validate:"required,e164"`
	Code        string `json:"code" validate:"required,min=4,max=12"`
	DisplayName string `json:"display_name" validate:"omitempty,max=64"`
}

type RefreshRequest struct {
	Phone        string `json:"phone" validate:"required,e164"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ValidateRequest checks the validate tags of any request struct.
func ValidateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return nil
}

// ParsePhone turns an E.164 phone number into a user id.
func ParsePhone(phone string) (domain.UserID, error) {
	if err := validate.Var(phone, "required,e164"); err != nil {
		return "", fmt.Errorf("%w: phone %q is not E.164", errors.ErrInvalidRequest, phone)
	}
	return domain.UserID(phone), nil
}
