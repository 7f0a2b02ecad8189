package models

import (
	"github.com/mmlogistics/freight_backend/utils"
	"github.com/shopspring/decimal"
)

// DocumentTotals carries the aggregates computed from an ordered line set
// and a discount spec. TotalTTC is always TotalHT + TotalVAT; it is never
// stored independently of the other two.
type DocumentTotals struct {
	GrossHT        decimal.Decimal
	GrossVAT       decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountRatio  decimal.Decimal
	TotalHT        decimal.Decimal
	TotalVAT       decimal.Decimal
	TotalTTC       decimal.Decimal
}

// CalculateDocumentTotals walks lines in caller order, fills the computed
// per-line fields in place and returns the document aggregates.
//
// Product lines accumulate quantity*rate into the gross totals and into a
// running subtotal. A Subtotal line consumes the running subtotal as its
// own total (quantity forced to 1, unit rate forced equal to the total,
// whatever the caller sent) and resets it to zero, so several Subtotal
// lines each cover only the product lines since the previous one.
//
// The document discount is resolved against the tax-excluded gross and
// clamped to it; VAT is reduced proportionally, which is what keeps the
// discount allocation consistent across mixed VAT rates.
func CalculateDocumentTotals(lines []DocumentLine, discount decimal.Decimal, discountType *DiscountType) DocumentTotals {

	var grossHT, grossVAT, runningSubtotal decimal.Decimal
	decimalOneHundred := decimal.NewFromInt(100)

	for i := range lines {
		line := &lines[i]
		switch line.LineType {
		case LineTypeSubtotal:
			line.LineTotal = runningSubtotal
			line.Quantity = decimal.NewFromInt(1)
			line.UnitRate = line.LineTotal
			line.VatRate = decimal.Zero
			runningSubtotal = decimal.Zero
		default:
			line.LineTotal = line.Quantity.Mul(line.UnitRate)
			grossHT = grossHT.Add(line.LineTotal)
			grossVAT = grossVAT.Add(line.LineTotal.Mul(line.VatRate).DivRound(decimalOneHundred, 8))
			runningSubtotal = runningSubtotal.Add(line.LineTotal)
		}
	}

	var discountAmount decimal.Decimal
	if discountType != nil {
		discountAmount = utils.CalculateDiscountAmount(grossHT, discount, string(*discountType))
	}

	discountRatio := decimal.Zero
	if grossHT.IsPositive() {
		discountRatio = discountAmount.DivRound(grossHT, 8)
	}

	totalHT := grossHT.Sub(discountAmount)
	totalVAT := grossVAT.Mul(decimal.NewFromInt(1).Sub(discountRatio))
	totalTTC := totalHT.Add(totalVAT)

	return DocumentTotals{
		GrossHT:        grossHT,
		GrossVAT:       grossVAT,
		DiscountAmount: discountAmount,
		DiscountRatio:  discountRatio,
		TotalHT:        totalHT,
		TotalVAT:       totalVAT,
		TotalTTC:       totalTTC,
	}
}
