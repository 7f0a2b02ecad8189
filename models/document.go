package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Document is either a quote or an invoice. The counterparty is exactly
// one of a resolved client reference or an inline guest identity.
type Document struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Kind             DocumentKind    `gorm:"size:1;not null;uniqueIndex:idx_kind_number,priority:1" json:"kind"`
	DocumentNumber   string          `gorm:"size:32;not null;uniqueIndex:idx_kind_number,priority:2" json:"document_number"`
	ClientId         int             `gorm:"index;default:null" json:"client_id"`
	GuestName        string          `gorm:"size:100" json:"guest_name"`
	GuestEmail       string          `gorm:"size:100" json:"guest_email"`
	GuestPhone       string          `gorm:"size:20" json:"guest_phone"`
	DocumentDate     time.Time       `gorm:"not null" json:"document_date"`
	DueDate          *time.Time      `gorm:"default:null" json:"due_date"`
	Message          string          `gorm:"type:text" json:"message"`
	PaymentTerms     string          `gorm:"type:text" json:"payment_terms"`
	FooterNote       string          `gorm:"type:text" json:"footer_note"`
	Discount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	DiscountType     *DiscountType   `gorm:"size:1;default:null" json:"discount_type"`
	TotalHT          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_ht"`
	TotalVAT         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_vat"`
	TotalTTC         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_ttc"`
	CurrentStatus    DocumentStatus  `gorm:"size:20;not null" json:"current_status"`
	AccessToken      string          `gorm:"size:64;not null;uniqueIndex" json:"-"`
	QuoteId          int             `gorm:"index;default:null" json:"quote_id"`
	DateSent         *time.Time      `json:"date_sent"`
	DateViewed       *time.Time      `json:"date_viewed"`
	DateAccepted     *time.Time      `json:"date_accepted"`
	DateRejected     *time.Time      `json:"date_rejected"`
	DatePaid         *time.Time      `json:"date_paid"`
	ReminderCount    int             `gorm:"default:0" json:"reminder_count"`
	LastReminderSent *time.Time      `json:"last_reminder_sent"`
	Lines            []DocumentLine  `gorm:"foreignKey:DocumentId" json:"lines"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// DocumentLine is owned by exactly one document. Position is the caller's
// visual order, contiguous 0..N-1, preserved verbatim by the server.
type DocumentLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	DocumentId  int             `gorm:"index;not null" json:"document_id"`
	LineType    LineType        `gorm:"size:1;not null;default:P" json:"line_type"`
	ProductRef  string          `gorm:"size:100" json:"product_ref"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit        string          `gorm:"size:20" json:"unit"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
	VatRate     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vat_rate"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
	Position    int             `gorm:"not null" json:"position"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocument struct {
	ClientId     int               `json:"client_id"`
	GuestName    string            `json:"guest_name"`
	GuestEmail   string            `json:"guest_email"`
	GuestPhone   string            `json:"guest_phone"`
	DocumentDate time.Time         `json:"document_date" binding:"required"`
	DueDate      *time.Time        `json:"due_date"`
	Message      string            `json:"message"`
	PaymentTerms string            `json:"payment_terms"`
	FooterNote   string            `json:"footer_note"`
	Discount     decimal.Decimal   `json:"discount"`
	DiscountType *DiscountType     `json:"discount_type"`
	Lines        []NewDocumentLine `json:"lines"`
}

type NewDocumentLine struct {
	LineType    LineType        `json:"line_type"`
	ProductRef  string          `json:"product_ref"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitRate    decimal.Decimal `json:"unit_rate"`
	VatRate     decimal.Decimal `json:"vat_rate"`
}

// validate input for both create & update.
func (input *NewDocument) validate(ctx context.Context) error {
	// exactly one of client reference / guest identity
	if input.ClientId > 0 {
		if input.GuestName != "" || input.GuestEmail != "" || input.GuestPhone != "" {
			return errors.New("client_id and guest identity are mutually exclusive")
		}
		if err := utils.ValidateResourceId[Client](ctx, input.ClientId); err != nil {
			return errors.New("client not found")
		}
	} else {
		if input.GuestName == "" {
			return errors.New("guest_name is required when no client_id is set")
		}
		if input.GuestEmail != "" && !utils.IsValidEmail(input.GuestEmail) {
			return errors.New("guest_email is not a valid email")
		}
		if input.GuestPhone != "" {
			if err := utils.ValidatePhoneNumber(input.GuestPhone, utils.CountryCode); err != nil {
				return errors.New("guest_phone is not a valid phone number")
			}
		}
	}
	if input.DiscountType != nil && *input.DiscountType != DiscountTypePercent && *input.DiscountType != DiscountTypeAmount {
		return errors.New("invalid discount_type")
	}
	for _, line := range input.Lines {
		if line.LineType != "" && line.LineType != LineTypeProduct && line.LineType != LineTypeSubtotal {
			return errors.New("invalid line_type")
		}
	}
	return nil
}

// mapNewDocumentLines copies the caller's lines in caller order, stamping
// contiguous positions 0..N-1.
func mapNewDocumentLines(input []NewDocumentLine) []DocumentLine {
	lines := make([]DocumentLine, 0, len(input))
	for i, l := range input {
		lineType := l.LineType
		if lineType == "" {
			lineType = LineTypeProduct
		}
		lines = append(lines, DocumentLine{
			LineType:    lineType,
			ProductRef:  l.ProductRef,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitRate:    l.UnitRate,
			VatRate:     l.VatRate,
			Position:    i,
		})
	}
	return lines
}

func (doc *Document) applyTotals(totals DocumentTotals) {
	doc.TotalHT = totals.TotalHT
	doc.TotalVAT = totals.TotalVAT
	doc.TotalTTC = totals.TotalTTC
}

// CreateQuote creates a quote in Draft with a fresh DEV number and token.
func CreateQuote(ctx context.Context, actorId string, input *NewDocument) (*Document, error) {
	return createDocument(ctx, actorId, DocumentKindQuote, input)
}

// CreateInvoice creates a standalone (unlinked) invoice in Draft.
// Payment terms and footer fall back to the kind's defaults when blank.
func CreateInvoice(ctx context.Context, actorId string, input *NewDocument) (*Document, error) {
	return createDocument(ctx, actorId, DocumentKindInvoice, input)
}

func createDocument(ctx context.Context, actorId string, kind DocumentKind, input *NewDocument) (*Document, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	defaults, err := GetDocumentDefaults(ctx, kind)
	if err != nil {
		return nil, err
	}
	paymentTerms := input.PaymentTerms
	if paymentTerms == "" {
		paymentTerms = defaults.PaymentTerms
	}
	footerNote := input.FooterNote
	if footerNote == "" {
		footerNote = defaults.FooterNote
	}

	number, err := GenerateDocumentNumber(ctx, config.GetDB(), kind, input.DocumentDate)
	if err != nil {
		return nil, err
	}

	lines := mapNewDocumentLines(input.Lines)
	totals := CalculateDocumentTotals(lines, input.Discount, input.DiscountType)

	doc := Document{
		Kind:           kind,
		DocumentNumber: number,
		ClientId:       input.ClientId,
		GuestName:      input.GuestName,
		GuestEmail:     input.GuestEmail,
		GuestPhone:     input.GuestPhone,
		DocumentDate:   input.DocumentDate,
		DueDate:        input.DueDate,
		Message:        input.Message,
		PaymentTerms:   paymentTerms,
		FooterNote:     footerNote,
		Discount:       input.Discount,
		DiscountType:   input.DiscountType,
		CurrentStatus:  DocumentStatusDraft,
		AccessToken:    utils.NewAccessToken(),
	}
	doc.applyTotals(totals)

	saved, err := SaveDocument(ctx, actorId, &doc, lines)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := appendHistory(db.WithContext(ctx), saved.ID, HistoryActionCreate,
		fmt.Sprintf("%s %s created, total %s TTC", kindLabel(kind), saved.DocumentNumber, saved.TotalTTC), actorId); err != nil {
		return nil, err
	}

	return saved, nil
}

// UpdateDocument replaces the entire document: header fields and the full
// line set (delete-all then insert-all, totals recomputed from scratch).
// Number, token, status, stamps and the quote link are preserved.
func UpdateDocument(ctx context.Context, actorId string, id int, input *NewDocument) (*Document, error) {

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	existing, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	// don't allow updating paid invoices
	if existing.Kind == DocumentKindInvoice && existing.CurrentStatus == DocumentStatusPaid {
		return nil, errors.New("cannot update a paid invoice")
	}

	existing.ClientId = input.ClientId
	existing.GuestName = input.GuestName
	existing.GuestEmail = input.GuestEmail
	existing.GuestPhone = input.GuestPhone
	existing.DocumentDate = input.DocumentDate
	existing.DueDate = input.DueDate
	existing.Message = input.Message
	existing.PaymentTerms = input.PaymentTerms
	existing.FooterNote = input.FooterNote
	existing.Discount = input.Discount
	existing.DiscountType = input.DiscountType

	lines := mapNewDocumentLines(input.Lines)
	totals := CalculateDocumentTotals(lines, input.Discount, input.DiscountType)
	existing.applyTotals(totals)
	existing.Lines = nil

	saved, err := SaveDocument(ctx, actorId, existing, lines)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := appendHistory(db.WithContext(ctx), saved.ID, HistoryActionUpdate,
		fmt.Sprintf("%s %s updated, total %s TTC", kindLabel(saved.Kind), saved.DocumentNumber, saved.TotalTTC), actorId); err != nil {
		return nil, err
	}

	return saved, nil
}

// DeleteDocument removes a Draft document with its lines and history.
// Deleting a quote that an invoice still links to clears the link on the
// invoice in the same transaction so it never points at a missing row.
func DeleteDocument(ctx context.Context, actorId string, id int) (*Document, error) {

	result, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.CurrentStatus != DocumentStatusDraft {
		return nil, errors.New("only draft documents can be deleted")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	if result.Kind == DocumentKindQuote {
		var linked []Document
		if err := tx.Where("kind = ? AND quote_id = ?", DocumentKindInvoice, result.ID).Find(&linked).Error; err != nil {
			return nil, err
		}
		for _, inv := range linked {
			if err := tx.Model(&Document{}).Where("id = ?", inv.ID).Update("quote_id", nil).Error; err != nil {
				return nil, err
			}
			if err := appendHistory(tx, inv.ID, HistoryActionUnlink,
				fmt.Sprintf("source quote %s deleted, link removed", result.DocumentNumber), actorId); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Where("document_id = ?", result.ID).Delete(&DocumentLine{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("document_id = ?", result.ID).Delete(&DocumentHistory{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&Document{}, result.ID).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

// GetDocument fetches a document with its lines in position order.
func GetDocument(ctx context.Context, id int) (*Document, error) {
	db := config.GetDB()
	var result Document
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

// GetDocumentByToken is the unauthenticated public read. While the
// document is Sent, the read transitions it to Viewed as its only side
// effect; repeat views neither re-transition nor re-stamp DateViewed.
func GetDocumentByToken(ctx context.Context, token string) (*Document, error) {
	db := config.GetDB()
	var result Document
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("access_token = ?", token).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if result.CurrentStatus == DocumentStatusSent {
		if err := markDocumentViewed(ctx, &result); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// ConvertQuoteToInvoice creates the linked invoice from a Draft quote,
// copying counterparty, message, discount and the full line set. Due date
// and payment terms / footer fall back to the invoice defaults. The quote
// moves to Converted, which is terminal for direct status changes but
// keeps the quote as a valid sync source.
func ConvertQuoteToInvoice(ctx context.Context, actorId string, quoteId int, dueDate *time.Time) (*Document, error) {

	quote, err := GetDocument(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.Kind != DocumentKindQuote {
		return nil, errors.New("document is not a quote")
	}
	if quote.CurrentStatus != DocumentStatusDraft {
		return nil, fmt.Errorf("cannot convert a %s quote", quote.CurrentStatus)
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Document{}).
		Where("kind = ? AND quote_id = ?", DocumentKindInvoice, quote.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("quote is already converted")
	}

	defaults, err := GetDocumentDefaults(ctx, DocumentKindInvoice)
	if err != nil {
		return nil, err
	}

	number, err := GenerateDocumentNumber(ctx, db, DocumentKindInvoice, time.Now())
	if err != nil {
		return nil, err
	}

	invoice := Document{
		Kind:           DocumentKindInvoice,
		DocumentNumber: number,
		ClientId:       quote.ClientId,
		GuestName:      quote.GuestName,
		GuestEmail:     quote.GuestEmail,
		GuestPhone:     quote.GuestPhone,
		DocumentDate:   time.Now(),
		DueDate:        dueDate,
		Message:        quote.Message,
		PaymentTerms:   defaults.PaymentTerms,
		FooterNote:     defaults.FooterNote,
		Discount:       quote.Discount,
		DiscountType:   quote.DiscountType,
		CurrentStatus:  DocumentStatusDraft,
		AccessToken:    utils.NewAccessToken(),
		QuoteId:        quote.ID,
	}
	if quote.PaymentTerms != "" {
		invoice.PaymentTerms = quote.PaymentTerms
	}

	lines := copyDocumentLines(quote.Lines)
	totals := CalculateDocumentTotals(lines, invoice.Discount, invoice.DiscountType)
	invoice.applyTotals(totals)

	saved, err := SaveDocument(ctx, actorId, &invoice, lines)
	if err != nil {
		return nil, err
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.Model(&Document{}).Where("id = ?", quote.ID).
		Update("current_status", DocumentStatusConverted).Error; err != nil {
		return nil, err
	}
	if err := appendHistory(tx, quote.ID, HistoryActionConvert,
		fmt.Sprintf("quote %s converted to invoice %s", quote.DocumentNumber, saved.DocumentNumber), actorId); err != nil {
		return nil, err
	}
	if err := appendHistory(tx, saved.ID, HistoryActionCreate,
		fmt.Sprintf("invoice %s created from quote %s", saved.DocumentNumber, quote.DocumentNumber), actorId); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return saved, nil
}

// copyDocumentLines clones lines for insertion under another document,
// preserving positions.
func copyDocumentLines(src []DocumentLine) []DocumentLine {
	lines := make([]DocumentLine, 0, len(src))
	for _, l := range src {
		lines = append(lines, DocumentLine{
			LineType:    l.LineType,
			ProductRef:  l.ProductRef,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitRate:    l.UnitRate,
			VatRate:     l.VatRate,
			Position:    l.Position,
		})
	}
	return lines
}

func kindLabel(kind DocumentKind) string {
	if kind == DocumentKindInvoice {
		return "invoice"
	}
	return "quote"
}

// LinkedDocumentId resolves the counterpart of a linked pair: the invoice
// created from a quote, or the quote an invoice was created from. Zero
// when the document is not linked.
func LinkedDocumentId(ctx context.Context, doc *Document) (int, error) {
	if doc.Kind == DocumentKindInvoice {
		return doc.QuoteId, nil
	}
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Document{}).
		Where("kind = ? AND quote_id = ?", DocumentKindInvoice, doc.ID).
		Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

type DocumentsConnection struct {
	Edges    []*DocumentsEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

type DocumentsEdge Edge[Document]

func PaginateDocuments(ctx context.Context, limit *int, after *string,
	kind *DocumentKind,
	documentNumber *string,
	clientID *int,
	status *DocumentStatus) (*DocumentsConnection, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("document_lines.position")
	})

	if kind != nil && *kind != "" {
		dbCtx.Where("kind = ?", *kind)
	}
	if documentNumber != nil && *documentNumber != "" {
		dbCtx.Where("document_number LIKE ?", "%"+*documentNumber+"%")
	}
	if clientID != nil && *clientID > 0 {
		dbCtx.Where("client_id = ?", *clientID)
	}
	if status != nil && *status != "" {
		if !quoteStatuses[*status] && !invoiceStatuses[*status] {
			return nil, errors.New("invalid status filter")
		}
		dbCtx.Where("current_status = ?", *status)
	}

	pageSize := 20
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	// Newest first. Paging on id keeps the cursor comparison exact on
	// every backend; document_date ties would otherwise need a composite
	// cursor over driver-formatted datetime text.
	edges, pageInfo, err := FetchPagePureCursor[Document](dbCtx, pageSize, after, "id", "<")
	if err != nil {
		return nil, err
	}

	var connection DocumentsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		documentEdge := DocumentsEdge(edge)
		connection.Edges = append(connection.Edges, &documentEdge)
	}

	return &connection, nil
}
