package match

import (
	"fmt"
	"strings"
)

// notFoundSentinel is what the service must answer for an item it
// cannot match. The prompt forbids omitting items outright, but the
// matcher still treats an omitted item exactly like this sentinel.
const notFoundSentinel = "N/A"

// Submission is one unmatched line item sent to the service.
type Submission struct {
	CharacterKey    string
	Personalization string
}

// buildPrompt renders the batch request. The complete catalog key
// list goes along so the service can only answer with keys that
// actually exist; anything else is rejected on the way back in.
func buildPrompt(catalogKeys []string, subs []Submission) string {
	var sb strings.Builder

	sb.WriteString("You are matching personalized magnet order items to character images. ")
	sb.WriteString("Convert each order item into an exact image key.\n\n")

	sb.WriteString("IMPORTANT: You MUST select from this EXACT list of available image keys. ")
	sb.WriteString("Do NOT guess or make up names.\n\n")

	fmt.Fprintf(&sb, "COMPLETE LIST OF AVAILABLE IMAGE KEYS (%d total):\n", len(catalogKeys))
	for _, key := range catalogKeys {
		fmt.Fprintf(&sb, "  - %s\n", key)
	}

	sb.WriteString("\nORDER ITEMS TO MATCH:\n")
	for i, s := range subs {
		fmt.Fprintf(&sb, "%d) Item: %s | Personalization: %s\n", i+1, s.CharacterKey, s.Personalization)
	}

	sb.WriteString(`
INSTRUCTIONS:
1. For each order item, identify which character and theme variant is requested
2. Match it to an EXACT key from the available image keys list above
3. If you cannot find a match, use "` + notFoundSentinel + `" as the image - DO NOT skip the item
4. If the theme is unclear, prefer "-captain" variants over others
5. ALWAYS return one entry per order item, in the same order, even if you are unsure
6. Multiple items may carry the SAME personalization name; keep them as separate entries

OUTPUT FORMAT - Return ONLY a JSON list, no other text:
[
  {"name": "PersonName1", "image": "exact-key", "confidence": 0.95},
  {"name": "PersonName2", "image": "` + notFoundSentinel + `", "confidence": 0}
]

"confidence" is your 0..1 certainty for the match. Return the list now:`)

	return sb.String()
}
