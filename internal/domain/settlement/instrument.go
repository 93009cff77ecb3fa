package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/gestion/backend/internal/domain/shared"
	"github.com/gestion/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents the instrument used to move money
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Instrument is one means of payment inside a payment document.
// The instrument subsystem guarantees the breakdown before the document
// reaches the ledger; here it is carried opaquely for audit purposes.
type Instrument struct {
	ID        uuid.UUID       `json:"id"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// NewInstrument creates a new payment instrument
func NewInstrument(method PaymentMethod, amount valueobject.Money, reference string) (*Instrument, error) {
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_INSTRUMENT_AMOUNT", "Instrument amount must be positive")
	}
	return &Instrument{
		ID:        uuid.New(),
		Method:    method,
		Amount:    amount.Amount(),
		Reference: reference,
	}, nil
}

// Instruments is a slice of Instrument that implements GORM Scanner/Valuer
// for JSONB storage
type Instruments []Instrument

// Total returns the sum of all instrument amounts
func (is Instruments) Total() decimal.Decimal {
	total := decimal.Zero
	for _, i := range is {
		total = total.Add(i.Amount)
	}
	return total
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (is Instruments) Value() (driver.Value, error) {
	if is == nil {
		return "[]", nil
	}
	return json.Marshal(is)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (is *Instruments) Scan(value interface{}) error {
	if value == nil {
		*is = Instruments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Instruments: unsupported type")
	}

	if len(bytes) == 0 {
		*is = Instruments{}
		return nil
	}

	return json.Unmarshal(bytes, is)
}
