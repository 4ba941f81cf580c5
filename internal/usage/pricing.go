package usage

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultQuotaPerUnit is how many quota units make one currency unit
const DefaultQuotaPerUnit = 500000

// tokensPerPriceUnit is the token count ratio prices are quoted against
const tokensPerPriceUnit = 1_000_000

// fixedPriceUnset marks a model billed by ratio rather than a fixed price
const fixedPriceUnset = -1

// Detail renders the pricing breakdown for a billable call. It returns ""
// when the metadata is missing the inputs the formula needs.
func Detail(promptTokens, completionTokens int, p Pricing) string {
	if p.GroupRatio == nil {
		return ""
	}
	group := *p.GroupRatio

	if p.ModelPrice != nil && *p.ModelPrice != fixedPriceUnset {
		price := *p.ModelPrice
		return fmt.Sprintf("model price $%s * group ratio %s = $%s",
			formatFloat(price), formatFloat(group), formatFloat(price*group))
	}

	if p.ModelRatio == nil {
		return ""
	}
	completionRatio := 0.0
	if p.CompletionRatio != nil {
		completionRatio = *p.CompletionRatio
	}

	inputPrice, completionPrice, cost := RatioCost(promptTokens, completionTokens, *p.ModelRatio, completionRatio, group)
	return fmt.Sprintf("prompt $%s / 1M tokens, completion $%s / 1M tokens\n"+
		"prompt %d tokens / 1M tokens * $%s + completion %d tokens / 1M tokens * $%s * group %s = $%s",
		formatFloat(inputPrice), formatFloat(completionPrice),
		promptTokens, formatFloat(inputPrice),
		completionTokens, formatFloat(completionPrice),
		formatFloat(group), strconv.FormatFloat(cost, 'f', 6, 64))
}

// RatioCost computes the per-1M-token prices and the total cost of a call
// billed by model ratio.
func RatioCost(promptTokens, completionTokens int, modelRatio, completionRatio, groupRatio float64) (inputPrice, completionPrice, cost float64) {
	inputPrice = modelRatio * 2.0
	completionPrice = modelRatio * 2.0 * completionRatio
	cost = float64(promptTokens)/tokensPerPriceUnit*inputPrice*groupRatio +
		float64(completionTokens)/tokensPerPriceUnit*completionPrice*groupRatio
	return inputPrice, completionPrice, cost
}

// RenderQuota formats a quota amount either as currency (quota / perUnit) or
// as a plain number.
func RenderQuota(quota decimal.Decimal, perUnit float64, inCurrency bool, digits int) string {
	if !inCurrency || perUnit <= 0 {
		return quota.String()
	}
	return "$" + quota.Div(decimal.NewFromFloat(perUnit)).StringFixed(int32(digits))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
