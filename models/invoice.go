package models

import (
	"errors"
	"regexp"
	"time"

	"gorm.io/datatypes"
)

// DocumentSchemaVersion is the current shape of the stored invoice document.
// Documents claiming a newer version are rejected at the store's write edge.
const DocumentSchemaVersion = 1

// Invoice is one cloud-synced invoice owned by a user. The document itself is
// stored as an opaque JSON blob; the store never inspects it beyond ordering
// by updated_at and refreshing the cached totals on write.
type Invoice struct {
	Id          string         `json:"id" gorm:"primaryKey"`
	OwnerId     string         `json:"-" gorm:"index;not null"`
	Owner       User           `json:"-" gorm:"foreignKey:OwnerId;references:Id"`
	Data        datatypes.JSON `json:"data" gorm:"type:jsonb;not null"`
	ArtifactKey string         `json:"-"` // object-storage key of the rendered PDF, if any
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"index"`
}

// MonetaryAdjustment is a discount or tax rule on an invoice document.
type MonetaryAdjustment struct {
	Type string  `json:"type"` // "percent" | "flat"
	Rate float64 `json:"rate"`
}

const AdjustmentPercent = "percent"

// Shipping is always a flat amount.
type Shipping struct {
	Amount float64 `json:"amount"`
}

type DocumentItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	// Amount is quantity x price as entered client-side. It is trusted as
	// stored so manual overrides survive recalculation.
	Amount float64 `json:"amount"`
}

// InvoiceDocument is the structured form of the payload blob. Parsed and
// validated at the store's read/write edge, never passed around as a raw map.
type InvoiceDocument struct {
	SchemaVersion int    `json:"schemaVersion"`
	Id            string `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
	InvoiceFrom   string `json:"invoiceFrom"`
	InvoiceTo     string `json:"invoiceTo"`
	Date          string `json:"date"`
	DueDate       string `json:"dueDate"`

	Items    []DocumentItem      `json:"items"`
	Discount *MonetaryAdjustment `json:"discount,omitempty"`
	Tax      *MonetaryAdjustment `json:"tax,omitempty"`
	Shipping *Shipping           `json:"shipping,omitempty"`

	AmountPaid float64 `json:"amountPaid"`
	Currency   string  `json:"currency,omitempty"`
	TemplateId string  `json:"templateId,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Paid       bool    `json:"paid"`
	Draft      bool    `json:"draft"`
	Archived   bool    `json:"archived"`

	// Derived fields cached for display. Recomputed by calc on every write,
	// never trusted from storage.
	SubTotal       float64 `json:"subTotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	Total          float64 `json:"total"`
	BalanceDue     float64 `json:"balanceDue"`
}

var invoiceIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

var ErrInvalidInvoiceId = errors.New("invalid invoice id")

// ValidateInvoiceId checks the client-generated id shape (url-safe, bounded).
func ValidateInvoiceId(id string) error {
	if !invoiceIdPattern.MatchString(id) {
		return ErrInvalidInvoiceId
	}
	return nil
}

// ValidateDocument rejects documents the current schema cannot represent.
func ValidateDocument(doc *InvoiceDocument) error {
	if doc == nil {
		return errors.New("missing invoice document")
	}
	if err := ValidateInvoiceId(doc.Id); err != nil {
		return err
	}
	if doc.SchemaVersion > DocumentSchemaVersion {
		return errors.New("unsupported invoice document version")
	}
	return nil
}
