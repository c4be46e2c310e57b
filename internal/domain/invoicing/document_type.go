package invoicing

import (
	"strings"
)

// DocumentType is the fiscal document type printed on a receipt.
// The number prefix belongs to the sequence configuration, not to the type.
type DocumentType string

const (
	DocumentTypeCreditFiscal     DocumentType = "credit-fiscal"
	DocumentTypeFinalConsumer    DocumentType = "final-consumer"
	DocumentTypeDebitNote        DocumentType = "debit-note"
	DocumentTypeCreditNote       DocumentType = "credit-note"
	DocumentTypeInformalSupplier DocumentType = "informal-supplier"
	DocumentTypeMinorExpense     DocumentType = "minor-expense"
	DocumentTypeSpecialRegime    DocumentType = "special-regime"
	DocumentTypeGovernmental     DocumentType = "governmental"
)

var documentTypeCodes = map[DocumentType]string{
	DocumentTypeCreditFiscal:     "B01",
	DocumentTypeFinalConsumer:    "B02",
	DocumentTypeDebitNote:        "B03",
	DocumentTypeCreditNote:       "B04",
	DocumentTypeInformalSupplier: "B11",
	DocumentTypeMinorExpense:     "B13",
	DocumentTypeSpecialRegime:    "B14",
	DocumentTypeGovernmental:     "B15",
}

// IsValid checks if the type is a known fiscal document type
func (t DocumentType) IsValid() bool {
	_, ok := documentTypeCodes[t]
	return ok
}

// Code returns the regulator code of the type (B01, B02, ...)
func (t DocumentType) Code() string {
	return documentTypeCodes[t]
}

// RequiresCustomerTaxID reports whether the buyer's tax id must be printed
func (t DocumentType) RequiresCustomerTaxID() bool {
	return t == DocumentTypeCreditFiscal || t == DocumentTypeGovernmental
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// ParseDocumentType accepts either the type name or its regulator code
func ParseDocumentType(s string) (DocumentType, error) {
	s = strings.TrimSpace(s)
	if t := DocumentType(strings.ToLower(s)); t.IsValid() {
		return t, nil
	}
	upper := strings.ToUpper(s)
	for t, code := range documentTypeCodes {
		if code == upper {
			return t, nil
		}
	}
	return "", invalidInput("unknown fiscal document type %q", s)
}
