package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryFood          Category = "FOOD"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryFamily        Category = "FAMILY"
	CategoryTransport     Category = "TRANSPORT"
	CategoryHealth        Category = "HEALTH"
	CategoryHousing       Category = "HOUSING"
	CategoryUtilities     Category = "UTILITIES"
	CategoryIncome        Category = "INCOME"
	CategorySavings       Category = "SAVINGS"
	CategoryOther         Category = "OTHER"
)

const (
	SourceManual  SourceType = "MANUAL"
	SourceVoice   SourceType = "VOICE"
	SourcePhoto   SourceType = "PHOTO"
	SourceChatGPT SourceType = "CHATGPT"
)

const (
	ReceiptPending    ReceiptStatus = "PENDING"
	ReceiptInProgress ReceiptStatus = "IN_PROGRESS"
	ReceiptCompleted  ReceiptStatus = "COMPLETED"
	ReceiptFailed     ReceiptStatus = "FAILED"
)

const (
	BalanceDebit      BalanceType = "DEBIT"
	BalanceInvestment BalanceType = "INVESTMENT"
	BalanceCredit     BalanceType = "CREDIT"
	BalanceLoan       BalanceType = "LOAN"
)

const (
	KindChecking     AccountKind = "CHECKING"
	KindSavings      AccountKind = "SAVINGS"
	KindCash         AccountKind = "CASH"
	KindCreditCard   AccountKind = "CREDIT_CARD"
	KindLoan         AccountKind = "LOAN"
	KindBroker       AccountKind = "BROKER"
	KindCryptoWallet AccountKind = "CRYPTO_WALLET"
)

// OriginManual marks book entries created through the API or an import.
const OriginManual = "manual"

type (
	Category      string
	SourceType    string
	ReceiptStatus string
	BalanceType   string
	AccountKind   string

	// Transaction is a ledger entry recorded by the agent-facing API.
	Transaction struct {
		ID               int64           `json:"id"`
		Amount           decimal.Decimal `json:"amount"`
		Category         Category        `json:"category"`
		OccurredAt       time.Time       `json:"occurredAt"`
		Notes            *string         `json:"notes"`
		SourceType       SourceType      `json:"sourceType"`
		ReceiptReference *string         `json:"receiptReference"`
		CreatedAt        time.Time       `json:"createdAt"`
		UpdatedAt        time.Time       `json:"updatedAt"`
	}

	ReceiptIngestion struct {
		ID         int64         `json:"id"`
		ExternalID string        `json:"externalId"`
		ReceiptURI *string       `json:"receiptUri"`
		Status     ReceiptStatus `json:"status"`
		Metadata   *string       `json:"metadata"`
		CreatedAt  time.Time     `json:"-"`
		UpdatedAt  time.Time     `json:"-"`
	}

	SavingsSnapshot struct {
		ID         int64           `json:"id"`
		Amount     decimal.Decimal `json:"amount"`
		CapturedAt time.Time       `json:"capturedAt"`
		Notes      *string         `json:"notes"`
		CreatedAt  time.Time       `json:"createdAt"`
	}

	// Account is a bank, card or broker account. AccountID is the external id
	// when one was given, otherwise the numeric key as a string.
	Account struct {
		Key           int64   `json:"-"`
		ExternalID    *string `json:"-"`
		AccountID     string  `json:"accountId"`
		Name          string  `json:"name"`
		AccountNumber *string `json:"accountNumber"`
		Provider      *string `json:"provider"`
		Currency      string  `json:"currency"`
	}

	// BookEntry is a dashboard transaction, typically imported from a bank export.
	BookEntry struct {
		ID          int64           `json:"id"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Category    *string         `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Account     *string         `json:"account"`
		Origin      string          `json:"origin"`
	}

	BalanceSnapshot struct {
		ID       int64       `json:"id"`
		Date     Date        `json:"date"`
		Balance  MoneyAmount `json:"balance"`
		Original MoneyAmount `json:"original"`
		FXToEUR  *FXRate     `json:"fxToEur"`
		Type     BalanceType `json:"type"`
		Kind     AccountKind `json:"kind"`
		Account  *string     `json:"account"`
		// AccountKey is the account the snapshot belongs to, used to bucket positions.
		AccountKey *string `json:"-"`
		Note       *string `json:"note"`
	}
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrFXRateRequired = errors.New("FX rate is required for non-EUR balances")
	ErrFXRateNotEUR   = errors.New("FX rate must convert to EUR")
)

// ValidationError reports a rejected input value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError is an ErrNotFound carrying a user-facing message.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// Categories lists every ledger category in declaration order.
var Categories = []Category{
	CategoryFood, CategoryEntertainment, CategoryFamily, CategoryTransport, CategoryHealth,
	CategoryHousing, CategoryUtilities, CategoryIncome, CategorySavings, CategoryOther,
}

var SourceTypes = []SourceType{SourceManual, SourceVoice, SourcePhoto, SourceChatGPT}

var ReceiptStatuses = []ReceiptStatus{ReceiptPending, ReceiptInProgress, ReceiptCompleted, ReceiptFailed}

var BalanceTypes = []BalanceType{BalanceDebit, BalanceInvestment, BalanceCredit, BalanceLoan}

var AccountKinds = []AccountKind{KindChecking, KindSavings, KindCash, KindCreditCard, KindLoan, KindBroker, KindCryptoWallet}

func ParseCategory(s string) (Category, error) {
	return parseEnum("category", s, Categories)
}

func ParseSourceType(s string) (SourceType, error) {
	return parseEnum("sourceType", s, SourceTypes)
}

func ParseReceiptStatus(s string) (ReceiptStatus, error) {
	return parseEnum("status", s, ReceiptStatuses)
}

func ParseBalanceType(s string) (BalanceType, error) {
	return parseEnum("type", s, BalanceTypes)
}

func ParseAccountKind(s string) (AccountKind, error) {
	return parseEnum("kind", s, AccountKinds)
}

func parseEnum[T ~string](field, s string, allowed []T) (T, error) {
	v := T(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range allowed {
		if a == v {
			return v, nil
		}
	}
	var zero T
	return zero, NewValidationError(field, "invalid %s '%s'", field, s)
}

// Sign returns +1 for assets (debit, investment) and -1 for liabilities.
func (t BalanceType) Sign() decimal.Decimal {
	switch t {
	case BalanceCredit, BalanceLoan:
		return decimal.NewFromInt(-1)
	default:
		return decimal.NewFromInt(1)
	}
}

func (k AccountKind) Description() string {
	switch k {
	case KindChecking:
		return "Primary bank account used for daily income and expenses."
	case KindSavings:
		return "Bank account used to store money for future use with low risk."
	case KindCash:
		return "Physical cash or cash equivalents you have immediate access to."
	case KindCreditCard:
		return "Revolving credit account where the balance represents money owed."
	case KindLoan:
		return "Borrowed money that must be repaid over time with interest."
	case KindBroker:
		return "Investment account holding stocks, ETFs, or other securities."
	case KindCryptoWallet:
		return "Wallet holding cryptocurrencies valued at current market prices."
	}
	return ""
}

// SignedAmount is the EUR balance adjusted by the snapshot type's sign.
func (s BalanceSnapshot) SignedAmount() decimal.Decimal {
	return s.Balance.Amount.Mul(s.Type.Sign())
}

// Validate checks the fields a book entry needs before it is stored.
func (e BookEntry) Validate() error {
	if e.Date.IsZero() {
		return NewValidationError("date", "date is required")
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return NewValidationError("description", "description is required")
	}
	if len(e.Description) > 512 {
		return NewValidationError("description", "description too long (max 512 characters)")
	}
	return nil
}

// StringPtr returns nil for blank strings and a pointer to the trimmed value otherwise.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
