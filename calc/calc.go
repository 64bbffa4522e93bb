// Package calc computes invoice totals. All functions are side-effect free
// and coerce invalid numbers to 0 rather than erroring.
package calc

import (
	"math"

	"invoicegarden-backend/models"
)

// SubTotal sums the stored item amounts. The stored amount is trusted over
// quantity x price so manual overrides are preserved.
func SubTotal(doc *models.InvoiceDocument) float64 {
	var sum float64
	for _, item := range doc.Items {
		sum += coerce(item.Amount)
	}
	return sum
}

// Adjustment resolves a discount or tax rule against a base amount.
// A nil rule or zero base yields 0.
func Adjustment(a *models.MonetaryAdjustment, base float64) float64 {
	if a == nil || base == 0 {
		return 0
	}
	rate := coerce(a.Rate)
	if a.Type == models.AdjustmentPercent {
		return base * rate / 100
	}
	return rate
}

// Total computes the final invoice amount. Discount applies to the raw item
// subtotal; tax applies to the post-discount amount. The order is part of the
// contract and must not change.
func Total(doc *models.InvoiceDocument) float64 {
	subTotal := SubTotal(doc)
	discount := Adjustment(doc.Discount, subTotal)
	tax := Adjustment(doc.Tax, subTotal-discount)

	total := subTotal - discount + tax
	if doc.Shipping != nil {
		total += coerce(doc.Shipping.Amount)
	}
	return total
}

// Recalculate refreshes every derived field cached on the document.
func Recalculate(doc *models.InvoiceDocument) {
	doc.SubTotal = SubTotal(doc)
	doc.DiscountAmount = Adjustment(doc.Discount, doc.SubTotal)
	doc.TaxAmount = Adjustment(doc.Tax, doc.SubTotal-doc.DiscountAmount)
	doc.Total = Total(doc)
	doc.BalanceDue = doc.Total - coerce(doc.AmountPaid)
}

func coerce(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
