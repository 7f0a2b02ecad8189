package models

// DocumentKind separates the two commercial document families. A quote is
// a non-binding priced proposal; an invoice requests payment and may be
// derived from a quote.
type DocumentKind string

const (
	DocumentKindQuote   DocumentKind = "Q"
	DocumentKindInvoice DocumentKind = "I"
)

// DocumentNumberPrefix is the human-readable reference prefix per kind.
func DocumentNumberPrefix(kind DocumentKind) string {
	if kind == DocumentKindInvoice {
		return "FAC"
	}
	return "DEV"
}

type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "Draft"
	DocumentStatusSent            DocumentStatus = "Sent"
	DocumentStatusViewed          DocumentStatus = "Viewed"
	DocumentStatusAccepted        DocumentStatus = "Accepted"
	DocumentStatusRejected        DocumentStatus = "Rejected"
	DocumentStatusChangeRequested DocumentStatus = "ChangeRequested"
	DocumentStatusConverted       DocumentStatus = "Converted"
	DocumentStatusPaid            DocumentStatus = "Paid"
)

var quoteStatuses = map[DocumentStatus]bool{
	DocumentStatusDraft:           true,
	DocumentStatusSent:            true,
	DocumentStatusViewed:          true,
	DocumentStatusAccepted:        true,
	DocumentStatusRejected:        true,
	DocumentStatusChangeRequested: true,
	DocumentStatusConverted:       true,
}

var invoiceStatuses = map[DocumentStatus]bool{
	DocumentStatusDraft:  true,
	DocumentStatusSent:   true,
	DocumentStatusViewed: true,
	DocumentStatusPaid:   true,
}

// IsValidStatus reports whether status belongs to the kind's workflow.
func (kind DocumentKind) IsValidStatus(status DocumentStatus) bool {
	if kind == DocumentKindInvoice {
		return invoiceStatuses[status]
	}
	return quoteStatuses[status]
}

type LineType string

const (
	LineTypeProduct  LineType = "P"
	LineTypeSubtotal LineType = "S"
)

// DiscountType: 'P' percentage of the tax-excluded gross, 'A' absolute amount.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeAmount  DiscountType = "A"
)

// History action labels. Every mutating operation appends exactly one entry.
const (
	HistoryActionCreate        = "CREATE"
	HistoryActionUpdate        = "UPDATE"
	HistoryActionStatus        = "STATUS"
	HistoryActionView          = "VIEW"
	HistoryActionSendSuccess   = "SEND"
	HistoryActionSendFailure   = "SEND_FAILED"
	HistoryActionReminder      = "REMINDER"
	HistoryActionSync          = "SYNC"
	HistoryActionConvert       = "CONVERT"
	HistoryActionUnlink        = "UNLINK"
	HistoryActionSaveRecovered = "SAVE_RECOVERED"
)

// SystemActor labels history entries recorded without an explicit actor id.
const SystemActor = "system"
