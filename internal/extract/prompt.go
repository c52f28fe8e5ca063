package extract

import (
	"fmt"
	"strings"

	"github.com/treasurylens/treasury-cli/internal/model"
)

const systemText = `You are a financial analyst extracting treasury facts from SEC filings. Return a valid JSON object matching the requested schema. Use null for anything the filing does not state. Never guess.`

const factPrompt = `Company: %s (%s)
Asset: %s
Fact sought: %s
%s
Filing type: %s

Filing excerpt:
%s

Extract the fact from the excerpt. The filing may state a new total directly,
or describe a transaction ("purchased an additional X", "sold X") relative to
prior holdings. Report whichever the text supports.
%s
Return a valid JSON object:
{
  "found": <true|false>,
  "total": <number or null, the directly stated total>,
  "transaction": {"type": "<purchase|sale>", "amount": <number>} or null,
  "share_classes": {"<class name>": <number>, ...} or null,
  "unit": "<unit, e.g. BTC or shares>",
  "as_of_date": "<YYYY-MM-DD or null>",
  "confidence": <0.0-1.0>,
  "reasoning": "<brief explanation citing the sentence used>"
}`

// buildPrompt renders the fact prompt for one extraction context.
func buildPrompt(ectx model.ExtractionContext, excerpt string) string {
	currentLine := "No value is currently on record."
	if ectx.HasCurrent {
		currentLine = fmt.Sprintf("Currently recorded value: %.0f", ectx.CurrentValue)
	}

	classNote := ""
	if len(ectx.ShareClasses) > 0 {
		classNote = fmt.Sprintf(
			"This company has multiple share classes (%s). Report per-class counts in share_classes; they will be summed.\n",
			strings.Join(ectx.ShareClasses, ", "),
		)
	}

	return fmt.Sprintf(factPrompt,
		ectx.CompanyName,
		ectx.Ticker,
		ectx.Asset,
		ectx.Field,
		currentLine,
		ectx.FilingType,
		excerpt,
		classNote,
	)
}
