package advisor

import (
	"strings"

	"tickerpulse/internal/domain"
)

// commonWords are uppercase tokens that look like tickers but almost never
// are when typed in a question.
var commonWords = map[string]bool{
	"A": true, "I": true, "IS": true, "IT": true, "ON": true, "IN": true,
	"AT": true, "TO": true, "DO": true, "BE": true, "OR": true, "AND": true,
	"THE": true, "FOR": true, "NOW": true, "BUY": true, "SELL": true,
	"WHAT": true, "HOW": true, "WHY": true, "CAN": true, "ALL": true,
}

// ExtractSymbols pulls ticker mentions from free text. $-prefixed tokens are
// always accepted; bare tokens must be fully uppercase and pass the symbol
// pattern.
func ExtractSymbols(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ".,!?:;()\"'")
		if token == "" {
			continue
		}

		dollar := strings.HasPrefix(token, "$")
		if dollar {
			token = token[1:]
		} else if token != strings.ToUpper(token) {
			continue
		}

		symbol, ok := domain.NormalizeSymbol(token)
		if !ok {
			continue
		}
		if !dollar && commonWords[symbol] {
			continue
		}
		if !seen[symbol] {
			seen[symbol] = true
			out = append(out, symbol)
		}
	}
	return out
}
