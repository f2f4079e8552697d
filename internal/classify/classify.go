// Package classify assigns a content category to a headline.
package classify

import (
	"fmt"
	"strings"
	"unicode"

	"headlines/internal/model"
)

// Rule maps a set of keywords to a category.
type Rule struct {
	Category model.Category
	Keywords []string
}

// Rules are evaluated in order and the first match wins. Headlines often
// carry keywords of several categories, so the order is significant.
var Rules = []Rule{
	{
		Category: model.CategoryCrypto,
		Keywords: []string{
			"crypto", "cryptocurrency", "cryptocurrencies", "bitcoin", "btc", "ethereum", "ether",
			"solana", "dogecoin", "xrp", "stablecoin", "stablecoins", "blockchain", "defi", "nft",
			"nfts", "altcoin", "altcoins", "coinbase", "binance", "crypto exchange",
		},
	},
	{
		Category: model.CategoryEarnings,
		Keywords: []string{
			"earnings", "eps", "quarterly results", "quarterly profit", "quarterly loss", "revenue",
			"revenues", "profit", "profits", "guidance", "beats estimates", "misses estimates",
			"q1", "q2", "q3", "q4", "fiscal quarter", "dividend", "buyback",
		},
	},
	{
		Category: model.CategoryPersonalFinance,
		Keywords: []string{
			"personal finance", "mortgage", "mortgages", "retirement", "401 k", "401k", "ira",
			"roth", "savings", "savings account", "credit card", "credit cards", "credit score",
			"budget", "budgeting", "student loan", "student loans", "tax refund", "social security",
			"debt", "emergency fund", "paycheck",
		},
	},
	{
		Category: model.CategoryTech,
		Keywords: []string{
			"tech", "technology", "ai", "artificial intelligence", "chip", "chips", "chipmaker",
			"semiconductor", "semiconductors", "nvidia", "apple", "microsoft", "google", "alphabet",
			"meta", "amazon", "openai", "software", "cloud", "startup", "startups", "cybersecurity",
			"smartphone", "iphone", "tesla",
		},
	},
	{
		Category: model.CategoryPolitics,
		Keywords: []string{
			"election", "elections", "congress", "senate", "house speaker", "white house",
			"president", "lawmakers", "legislation", "bill", "government", "shutdown", "tariff",
			"tariffs", "sanction", "sanctions", "policy", "regulation", "regulators", "supreme court",
			"trade war", "geopolitical",
		},
	},
	{
		Category: model.CategoryMarkets,
		Keywords: []string{
			"market", "markets", "stock", "stocks", "shares", "equities", "s p 500", "dow", "nasdaq",
			"wall street", "fed", "federal reserve", "rate", "rates", "inflation", "cpi", "bond",
			"bonds", "treasury", "treasuries", "yield", "yields", "oil", "gold", "dollar", "futures",
			"ipo", "rally", "selloff", "index", "recession", "gdp",
		},
	},
}

// Classify returns the category of the first rule whose keyword appears in
// the headline, or model.CategoryGeneral when none does. It never fails.
func Classify(headline string) model.Category {
	text := " " + normalize(headline) + " "
	if text == "  " {
		return model.CategoryGeneral
	}
	for _, rule := range Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, " "+normalize(kw)+" ") {
				return rule.Category
			}
		}
	}
	return model.CategoryGeneral
}

// ParseCategory converts a request parameter into a category.
// An empty value or "all" means no category filter and yields "".
func ParseCategory(s string) (model.Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	for _, c := range model.Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", s)
}

// normalize lower-cases s and reduces it to space-separated letter/digit tokens.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
