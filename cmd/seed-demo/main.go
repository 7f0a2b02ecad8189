package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmlogistics/freight_backend/config"
	"github.com/mmlogistics/freight_backend/models"
	"github.com/mmlogistics/freight_backend/utils"
	"github.com/shopspring/decimal"
)

// Seeds a demo client, one quote and its converted invoice. Intended for
// local development only.
func main() {
	actor := flag.String("actor", "seed", "Actor recorded in document history")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()

	client, err := models.CreateClient(ctx, models.NewClient{
		Name:    "Transports Morel",
		Email:   "compta@transports-morel.example",
		Address: "12 quai des Chartrons",
		City:    "Bordeaux",
		ZipCode: "33000",
		Country: "France",
	})
	utils.ErrorPanic(err)

	discountType := models.DiscountTypePercent
	quote, err := models.CreateQuote(ctx, *actor, &models.NewDocument{
		ClientId:     client.ID,
		DocumentDate: time.Now(),
		Message:      "Groupage Bordeaux - Casablanca, départ hebdomadaire.",
		Discount:     decimal.NewFromInt(10),
		DiscountType: &discountType,
		Lines: []models.NewDocumentLine{
			{
				LineType:    models.LineTypeProduct,
				Description: "Fret maritime 2 m3",
				Quantity:    decimal.NewFromInt(2),
				Unit:        "m3",
				UnitRate:    decimal.NewFromInt(100),
				VatRate:     decimal.NewFromInt(20),
			},
			{
				LineType:    models.LineTypeProduct,
				Description: "Assurance ad valorem",
				Quantity:    decimal.NewFromInt(1),
				UnitRate:    decimal.NewFromInt(50),
				VatRate:     decimal.NewFromInt(10),
			},
			{
				LineType:    models.LineTypeSubtotal,
				Description: "Sous-total transport",
			},
		},
	})
	utils.ErrorPanic(err)
	fmt.Printf("quote %s created (total %s)\n", quote.DocumentNumber, quote.TotalTTC.StringFixed(2))

	invoice, err := models.ConvertQuoteToInvoice(ctx, *actor, quote.ID, nil)
	utils.ErrorPanic(err)
	fmt.Printf("invoice %s created from %s\n", invoice.DocumentNumber, quote.DocumentNumber)
}
