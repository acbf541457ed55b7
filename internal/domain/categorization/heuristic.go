package categorization

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/rmassis/fiflow/internal/domain/taxonomy"
	"github.com/rmassis/fiflow/internal/domain/transaction"
)

// HeuristicConfig holds the keyword families of the deterministic override.
// Keywords are matched as substrings of the lower-cased description.
type HeuristicConfig struct {
	// YieldKeywords force the Yield category: interest, dividends and other
	// investment earnings that count toward income totals.
	YieldKeywords []string
	// PrincipalKeywords force the Investments category: redemptions and
	// contributions of principal, excluded from income/expense totals.
	PrincipalKeywords []string
}

// DefaultHeuristicConfig returns the keyword families tuned to Brazilian
// bank statement wording.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		YieldKeywords: []string{
			"rendimento", "rendimentos", "juros", "dividendo", "dividendos",
			"jcp", "jscp", "provento", "proventos", "remuneracao poupanca",
			"remuneração poupança", "lucro",
		},
		PrincipalKeywords: []string{
			"resgate", "aplicacao", "aplicação", "aplic aut", "aplic.aut",
			"cdb", "lci", "lca", "tesouro direto", "fundo de investimento",
			"previdencia", "previdência",
		},
	}
}

// HeuristicOverride rewrites the category of yield and investment-principal
// movements after the external stage. It is deterministic and always wins
// over the model's answer.
type HeuristicOverride struct {
	yield     *ahocorasick.Matcher
	principal *ahocorasick.Matcher
}

// NewHeuristicOverride compiles the keyword families into multi-pattern
// matchers.
func NewHeuristicOverride(cfg HeuristicConfig) *HeuristicOverride {
	return &HeuristicOverride{
		yield:     ahocorasick.NewStringMatcher(cfg.YieldKeywords),
		principal: ahocorasick.NewStringMatcher(cfg.PrincipalKeywords),
	}
}

// Apply rewrites tx in place when its description matches a keyword family.
// A description matching both families resolves to Yield; earnings wording
// beats instrument wording.
func (h *HeuristicOverride) Apply(tx *transaction.Transaction) {
	desc := []byte(strings.ToLower(tx.Description))

	if len(h.yield.MatchThreadSafe(desc)) > 0 {
		h.force(tx, taxonomy.CategoryYield)
		return
	}
	if len(h.principal.MatchThreadSafe(desc)) > 0 {
		h.force(tx, taxonomy.CategoryInvestments)
	}
}

func (h *HeuristicOverride) force(tx *transaction.Transaction, category string) {
	tx.Category = category
	tx.Subcategory = heuristicSubcategory(tx, category)
	tx.SetConfidence(overrideConfidence)
}

// heuristicSubcategory picks the subcategory the movement direction implies.
func heuristicSubcategory(tx *transaction.Transaction, category string) string {
	switch category {
	case taxonomy.CategoryYield:
		return "Interest"
	case taxonomy.CategoryInvestments:
		if tx.Type == transaction.TypeIncome {
			return "Redemption"
		}
		return "Contribution"
	default:
		return taxonomy.SubcategoryUncategorized
	}
}
