package models

import (
	"context"
	"testing"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/shopspring/decimal"
)

func TestCreateQuoteComputesTotalsAndHistory(t *testing.T) {
	quote := mustCreateQuote(t, "alice")

	if quote.CurrentStatus != DocumentStatusDraft {
		t.Errorf("status = %s, want Draft", quote.CurrentStatus)
	}
	if quote.AccessToken == "" {
		t.Error("access token not generated")
	}
	if !quote.TotalHT.Equal(decimal.NewFromInt(225)) {
		t.Errorf("TotalHT = %s, want 225", quote.TotalHT)
	}
	if !quote.TotalTTC.Equal(decimal.NewFromFloat(265.5)) {
		t.Errorf("TotalTTC = %s, want 265.5", quote.TotalTTC)
	}

	if len(quote.Lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(quote.Lines))
	}
	for i, line := range quote.Lines {
		if line.Position != i {
			t.Errorf("line %d position = %d", i, line.Position)
		}
	}
	// the subtotal line covers the two product lines
	if !quote.Lines[2].LineTotal.Equal(decimal.NewFromInt(250)) {
		t.Errorf("subtotal line total = %s, want 250", quote.Lines[2].LineTotal)
	}

	entries, err := GetDocumentHistories(context.Background(), quote.ID)
	if err != nil {
		t.Fatalf("GetDocumentHistories: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != HistoryActionCreate {
		t.Fatalf("history = %v, want one CREATE entry", historyActions(t, quote.ID))
	}
	if entries[0].ActorId != "alice" {
		t.Errorf("history actor = %q, want alice", entries[0].ActorId)
	}
}

func TestCreateDocumentRecordsSystemActorWhenBlank(t *testing.T) {
	quote := mustCreateQuote(t, "")
	entries, err := GetDocumentHistories(context.Background(), quote.ID)
	if err != nil {
		t.Fatalf("GetDocumentHistories: %v", err)
	}
	if entries[0].ActorId != SystemActor {
		t.Errorf("history actor = %q, want %q", entries[0].ActorId, SystemActor)
	}
}

func TestCreateDocumentRejectsClientAndGuestTogether(t *testing.T) {
	input := guestQuoteInput()
	input.ClientId = 1
	if _, err := CreateQuote(context.Background(), "tester", input); err == nil {
		t.Error("expected error for client_id combined with guest identity")
	}
}

func TestCreateDocumentRequiresSomeCounterparty(t *testing.T) {
	input := guestQuoteInput()
	input.GuestName = ""
	input.GuestEmail = ""
	input.GuestPhone = ""
	if _, err := CreateQuote(context.Background(), "tester", input); err == nil {
		t.Error("expected error for missing counterparty")
	}
}

func TestCreateDocumentAppliesKindDefaults(t *testing.T) {
	ctx := context.Background()
	if _, err := UpsertDocumentSettings(ctx, NewDocumentSettings{
		Kind:         DocumentKindInvoice,
		PaymentTerms: "Paiement à 30 jours",
		FooterNote:   "TVA non applicable, art. 293 B du CGI",
	}); err != nil {
		t.Fatalf("UpsertDocumentSettings: %v", err)
	}

	invoice := mustCreateInvoice(t, "tester")
	if invoice.PaymentTerms != "Paiement à 30 jours" {
		t.Errorf("PaymentTerms = %q, want the kind default", invoice.PaymentTerms)
	}
	if invoice.FooterNote != "TVA non applicable, art. 293 B du CGI" {
		t.Errorf("FooterNote = %q, want the kind default", invoice.FooterNote)
	}

	// explicit input wins over defaults
	input := guestQuoteInput()
	input.PaymentTerms = "Comptant"
	withTerms, err := CreateInvoice(ctx, "tester", input)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if withTerms.PaymentTerms != "Comptant" {
		t.Errorf("PaymentTerms = %q, want the explicit value", withTerms.PaymentTerms)
	}
}

func TestUpdateDocumentReplacesLinesAndKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")

	input := guestQuoteInput()
	input.Message = "Révision tarifaire"
	input.Lines = []NewDocumentLine{
		{
			LineType:    LineTypeProduct,
			Description: "Fret aérien",
			Quantity:    decimal.NewFromInt(1),
			UnitRate:    decimal.NewFromInt(300),
			VatRate:     decimal.NewFromInt(20),
		},
	}

	updated, err := UpdateDocument(ctx, "tester", quote.ID, input)
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	if updated.DocumentNumber != quote.DocumentNumber {
		t.Errorf("number changed on update: %q -> %q", quote.DocumentNumber, updated.DocumentNumber)
	}
	if updated.AccessToken != quote.AccessToken {
		t.Error("access token changed on update")
	}
	if updated.CurrentStatus != DocumentStatusDraft {
		t.Errorf("status = %s, want Draft preserved", updated.CurrentStatus)
	}
	if len(updated.Lines) != 1 {
		t.Fatalf("line count after update = %d, want 1", len(updated.Lines))
	}
	// 300 HT, 10% discount -> 270 HT, VAT 60*0.9 = 54
	if !updated.TotalHT.Equal(decimal.NewFromInt(270)) {
		t.Errorf("TotalHT = %s, want 270", updated.TotalHT)
	}
	if !updated.TotalVAT.Equal(decimal.NewFromInt(54)) {
		t.Errorf("TotalVAT = %s, want 54", updated.TotalVAT)
	}
	if !hasHistoryAction(t, quote.ID, HistoryActionUpdate) {
		t.Error("UPDATE history entry missing")
	}
}

func TestDeleteDocumentDraftOnly(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := DeleteDocument(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("DeleteDocument draft: %v", err)
	}
	if _, err := GetDocument(ctx, quote.ID); err == nil {
		t.Error("deleted document still readable")
	}

	sent := mustCreateQuote(t, "tester")
	if _, err := MarkQuoteSent(ctx, "tester", sent.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	if _, err := DeleteDocument(ctx, "tester", sent.ID); err == nil {
		t.Error("expected error deleting a sent document")
	}
}

func TestConvertQuoteToInvoice(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")

	invoice, err := ConvertQuoteToInvoice(ctx, "tester", quote.ID, nil)
	if err != nil {
		t.Fatalf("ConvertQuoteToInvoice: %v", err)
	}

	if invoice.Kind != DocumentKindInvoice {
		t.Fatalf("converted kind = %s, want invoice", invoice.Kind)
	}
	if invoice.QuoteId != quote.ID {
		t.Errorf("invoice QuoteId = %d, want %d", invoice.QuoteId, quote.ID)
	}
	if invoice.CurrentStatus != DocumentStatusDraft {
		t.Errorf("invoice status = %s, want Draft", invoice.CurrentStatus)
	}
	if !invoice.TotalTTC.Equal(quote.TotalTTC) {
		t.Errorf("invoice TotalTTC = %s, want %s", invoice.TotalTTC, quote.TotalTTC)
	}
	if len(invoice.Lines) != len(quote.Lines) {
		t.Errorf("invoice line count = %d, want %d", len(invoice.Lines), len(quote.Lines))
	}
	if invoice.AccessToken == quote.AccessToken {
		t.Error("invoice must not reuse the quote's access token")
	}

	quoteAfter, err := GetDocument(ctx, quote.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if quoteAfter.CurrentStatus != DocumentStatusConverted {
		t.Errorf("quote status = %s, want Converted", quoteAfter.CurrentStatus)
	}
	if !hasHistoryAction(t, quote.ID, HistoryActionConvert) {
		t.Error("CONVERT history entry missing on quote")
	}

	// converting twice is rejected
	if _, err := ConvertQuoteToInvoice(ctx, "tester", quote.ID, nil); err == nil {
		t.Error("expected error converting an already-converted quote")
	}

	// both sides resolve each other
	linked, err := LinkedDocumentId(ctx, quoteAfter)
	if err != nil || linked != invoice.ID {
		t.Errorf("LinkedDocumentId(quote) = %d, %v; want %d", linked, err, invoice.ID)
	}
	linked, err = LinkedDocumentId(ctx, invoice)
	if err != nil || linked != quote.ID {
		t.Errorf("LinkedDocumentId(invoice) = %d, %v; want %d", linked, err, quote.ID)
	}
}

func TestConvertRequiresDraftQuote(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	if _, err := ConvertQuoteToInvoice(ctx, "tester", quote.ID, nil); err == nil {
		t.Error("expected error converting a sent quote")
	}
}

func TestDeleteLinkedQuoteClearsInvoiceLink(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")
	invoice, err := ConvertQuoteToInvoice(ctx, "tester", quote.ID, nil)
	if err != nil {
		t.Fatalf("ConvertQuoteToInvoice: %v", err)
	}

	// converted quotes are not Draft; reopen first, then delete
	if _, err := ReopenQuote(ctx, "tester", quote.ID); err == nil {
		t.Fatal("reopening a converted quote should fail")
	}

	// force the quote back to Draft directly to exercise the unlink path
	db := config.GetDB()
	if err := db.Model(&Document{}).Where("id = ?", quote.ID).Update("current_status", DocumentStatusDraft).Error; err != nil {
		t.Fatalf("reset status: %v", err)
	}

	if _, err := DeleteDocument(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	invoiceAfter, err := GetDocument(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetDocument invoice: %v", err)
	}
	if invoiceAfter.QuoteId != 0 {
		t.Errorf("invoice QuoteId = %d, want cleared", invoiceAfter.QuoteId)
	}
	if !hasHistoryAction(t, invoice.ID, HistoryActionUnlink) {
		t.Error("UNLINK history entry missing on invoice")
	}
}

func TestGetDocumentByTokenFlipsSentToViewed(t *testing.T) {
	ctx := context.Background()
	quote := mustCreateQuote(t, "tester")

	// a Draft open changes nothing
	viewed, err := GetDocumentByToken(ctx, quote.AccessToken)
	if err != nil {
		t.Fatalf("GetDocumentByToken: %v", err)
	}
	if viewed.CurrentStatus != DocumentStatusDraft {
		t.Errorf("draft open changed status to %s", viewed.CurrentStatus)
	}

	if _, err := MarkQuoteSent(ctx, "tester", quote.ID); err != nil {
		t.Fatalf("MarkQuoteSent: %v", err)
	}
	viewed, err = GetDocumentByToken(ctx, quote.AccessToken)
	if err != nil {
		t.Fatalf("GetDocumentByToken: %v", err)
	}
	if viewed.CurrentStatus != DocumentStatusViewed {
		t.Errorf("status after open = %s, want Viewed", viewed.CurrentStatus)
	}
	if viewed.DateViewed == nil {
		t.Error("DateViewed not stamped")
	}
	firstViewed := *viewed.DateViewed

	// a second open is idempotent
	again, err := GetDocumentByToken(ctx, quote.AccessToken)
	if err != nil {
		t.Fatalf("GetDocumentByToken: %v", err)
	}
	if again.CurrentStatus != DocumentStatusViewed {
		t.Errorf("status after re-open = %s, want Viewed", again.CurrentStatus)
	}
	if again.DateViewed == nil || !again.DateViewed.Equal(firstViewed) {
		t.Error("DateViewed re-stamped on second open")
	}

	if _, err := GetDocumentByToken(ctx, "no-such-token"); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestPaginateDocumentsFiltersByKind(t *testing.T) {
	ctx := context.Background()
	mustCreateQuote(t, "tester")
	mustCreateInvoice(t, "tester")

	kind := DocumentKindInvoice
	connection, err := PaginateDocuments(ctx, nil, nil, &kind, nil, nil, nil)
	if err != nil {
		t.Fatalf("PaginateDocuments: %v", err)
	}
	if len(connection.Edges) == 0 {
		t.Fatal("no invoice edges returned")
	}
	for _, edge := range connection.Edges {
		if edge.Node.Kind != DocumentKindInvoice {
			t.Errorf("edge kind = %s, want invoice only", edge.Node.Kind)
		}
	}

	bogus := DocumentStatus("Nonsense")
	if _, err := PaginateDocuments(ctx, nil, nil, nil, nil, nil, &bogus); err == nil {
		t.Error("expected error for invalid status filter")
	}
}

func TestPaginateDocumentsWalksAllEntries(t *testing.T) {
	ctx := context.Background()
	client, err := CreateClient(ctx, NewClient{Name: "Fret Pagination SARL"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	// All five share one document date; paging must still never repeat
	// or skip a row.
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	want := map[int]bool{}
	for i := 0; i < 5; i++ {
		input := guestQuoteInput()
		input.GuestName = ""
		input.GuestEmail = ""
		input.ClientId = client.ID
		input.DocumentDate = day
		quote, err := CreateQuote(ctx, "tester", input)
		if err != nil {
			t.Fatalf("CreateQuote #%d: %v", i, err)
		}
		want[quote.ID] = true
	}

	limit := 2
	seen := map[int]bool{}
	var after *string
	pages := 0
	for {
		connection, err := PaginateDocuments(ctx, &limit, after, nil, nil, &client.ID, nil)
		if err != nil {
			t.Fatalf("PaginateDocuments: %v", err)
		}
		for _, edge := range connection.Edges {
			if seen[edge.Node.ID] {
				t.Fatalf("document id %d repeated on page %d", edge.Node.ID, pages+1)
			}
			seen[edge.Node.ID] = true
		}
		pages++
		if connection.PageInfo.HasNextPage == nil || !*connection.PageInfo.HasNextPage {
			break
		}
		cursor := connection.PageInfo.EndCursor
		after = &cursor
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(seen) != len(want) {
		t.Fatalf("walked %d documents, want %d", len(seen), len(want))
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("document id %d missing from the walk", id)
		}
	}
}
