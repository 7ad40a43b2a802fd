package user

import (
	"fmt"
	"unicode"
)

const (
	MinLoginLen    = 3
	MaxLoginLen    = 32
	MinPasswordLen = 8
)

// Validator проверяет учетные данные перед регистрацией и входом
type Validator interface {
	ValidateRegister(login, password string) error
	ValidateLogin(login string) error
	ValidatePassword(password string) error
}

// PasswordPolicy описывает, какие классы символов обязательны в пароле
type PasswordPolicy struct {
	RequireSpecialChar bool
	RequireDigit       bool
	RequireUpper       bool
	RequireLower       bool
}

// StrictPolicy требует все классы символов
var StrictPolicy = PasswordPolicy{
	RequireSpecialChar: true,
	RequireDigit:       true,
	RequireUpper:       true,
	RequireLower:       true,
}

type PasswordValidator struct {
	policy PasswordPolicy
}

func NewPasswordValidator(policy PasswordPolicy) *PasswordValidator {
	return &PasswordValidator{policy: policy}
}

func (v *PasswordValidator) ValidateRegister(login, password string) error {
	if err := v.ValidateLogin(login); err != nil {
		return fmt.Errorf("login validation failed: %w", err)
	}

	if err := v.ValidatePassword(password); err != nil {
		return fmt.Errorf("password validation failed: %w", err)
	}

	return nil
}

func (v *PasswordValidator) ValidateLogin(login string) error {
	if len(login) < MinLoginLen {
		return fmt.Errorf("login must be at least %d characters", MinLoginLen)
	}
	if len(login) > MaxLoginLen {
		return fmt.Errorf("login must be at most %d characters", MaxLoginLen)
	}

	for _, r := range login {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return fmt.Errorf("login can only contain letters, digits, '_', '-', '.'")
		}
	}

	return nil
}

func (v *PasswordValidator) ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case v.policy.RequireLower && !lower:
		return fmt.Errorf("password must contain at least one lowercase letter")
	case v.policy.RequireUpper && !upper:
		return fmt.Errorf("password must contain at least one uppercase letter")
	case v.policy.RequireDigit && !digit:
		return fmt.Errorf("password must contain at least one digit")
	case v.policy.RequireSpecialChar && !special:
		return fmt.Errorf("password must contain at least one special character")
	}

	return nil
}
