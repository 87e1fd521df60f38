package schemas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCard is returned when a card record fails validation.
var ErrInvalidCard = errors.New("invalid card record")

// CardRecord is a stored payment card. The engine borrows it read-only for one run.
type CardRecord struct {
	ID       string `json:"id"`
	BankName string `json:"bankName"`
	Number   string `json:"number"`
	Name     string `json:"name"`
	Expiry   string `json:"expiry"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// Validate checks the account number, holder name and expiry format.
func (c CardRecord) Validate() error {
	if n := len(c.Number); n < 13 || n > 19 {
		return fmt.Errorf("%w: number must have 13-19 digits, got %d", ErrInvalidCard, n)
	}
	for _, r := range c.Number {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: number must contain digits only", ErrInvalidCard)
		}
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: holder name is required", ErrInvalidCard)
	}
	if !validExpiry(c.Expiry) {
		return fmt.Errorf("%w: expiry %q is not MM/YY", ErrInvalidCard, c.Expiry)
	}
	return nil
}

func validExpiry(s string) bool {
	if len(s) != 5 || s[2] != '/' {
		return false
	}
	month, err := strconv.Atoi(s[:2])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	_, err = strconv.Atoi(s[3:])
	return err == nil
}

// Masked returns the account number with all but the last four digits hidden.
// Use it for every log field that refers to a card.
func (c CardRecord) Masked() string {
	return MaskNumber(c.Number)
}

// MaskNumber hides all but the last four characters of a card number.
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return "**** " + number[len(number)-4:]
}

// FillContext is the complete input of one automation run. It is built per payment
// attempt and must not be modified once the run starts.
type FillContext struct {
	Card   CardRecord `json:"card"`
	Amount string     `json:"amount"`
	Email  string     `json:"email"`
	Phone  string     `json:"phone"`
}

// NewFillContext builds a context, falling back to the card's own contact details
// when email or phone are empty.
func NewFillContext(card CardRecord, amount, email, phone string) FillContext {
	if email == "" {
		email = card.Email
	}
	if phone == "" {
		phone = card.Phone
	}
	return FillContext{Card: card, Amount: amount, Email: email, Phone: phone}
}

// ValidateAmount accepts positive decimal strings such as "250" or "99.50".
func ValidateAmount(amount string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return fmt.Errorf("amount %q is not a decimal number: %w", amount, err)
	}
	if v <= 0 {
		return fmt.Errorf("amount %q must be positive", amount)
	}
	return nil
}

// TransactionRecord is appended to the vault history when a payment completes.
type TransactionRecord struct {
	BankName  string    `json:"bankName"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
