// Package numerator provides domain contracts for document auto-numbering.
// Implementations of CounterStore live in the infrastructure layer.
package numerator

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DocumentType identifies an independent numbering sequence.
type DocumentType string

const (
	Inquiry    DocumentType = "inquiry"
	Quotation  DocumentType = "quotation"
	SalesOrder DocumentType = "sales_order"
	Invoice    DocumentType = "invoice"
	PayrollRun DocumentType = "payroll_run"
)

// defaultPrefixes doubles as the registry of recognized document types.
var defaultPrefixes = map[DocumentType]string{
	Inquiry:    "INQ",
	Quotation:  "QUO",
	SalesOrder: "SO",
	Invoice:    "INV",
	PayrollRun: "PAY",
}

// IsValid reports whether t is a recognized document type.
func (t DocumentType) IsValid() bool {
	_, ok := defaultPrefixes[t]
	return ok
}

// DefaultPrefix returns the display prefix used when no override is configured.
func (t DocumentType) DefaultPrefix() string {
	return defaultPrefixes[t]
}

func (t DocumentType) String() string {
	return string(t)
}

// ParseDocumentType converts user input into a DocumentType.
// Matching ignores case and surrounding blanks.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, s)
	}
	return t, nil
}

// DocumentTypes returns all recognized types in lexical order.
func DocumentTypes() []DocumentType {
	types := make([]DocumentType, 0, len(defaultPrefixes))
	for t := range defaultPrefixes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SequenceCounter is the persisted last-issued number for one DocumentType.
type SequenceCounter struct {
	DocumentType DocumentType `db:"document_type" json:"documentType"`
	LastIssued   int64        `db:"last_issued" json:"lastIssued"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// Number is one allocated document number together with its display form.
type Number struct {
	DocumentType DocumentType
	Value        int64
	Formatted    string
}
