// Package taxonomy holds the fixed category/subcategory tables used to
// validate classifier output. The table is an injected value object so the
// classifier logic never hard-codes category names.
package taxonomy

// Well-known buckets referenced by the classifier's validation and heuristic
// override rules.
const (
	CategoryOther            = "Other"
	CategoryYield            = "Yield"
	CategoryInvestments      = "Investments"
	SubcategoryUncategorized = "Uncategorized"
)

// Taxonomy maps each principal category to its ordered set of valid
// subcategories. The first subcategory of each category is its safe default.
type Taxonomy struct {
	order      []string
	categories map[string][]string
}

// New builds a taxonomy from an ordered list of categories. Order matters:
// it is preserved in Categories() and in prompts built for the external
// classifier.
func New(entries []Entry) *Taxonomy {
	t := &Taxonomy{categories: make(map[string][]string, len(entries))}
	for _, e := range entries {
		if _, ok := t.categories[e.Category]; ok {
			continue
		}
		t.order = append(t.order, e.Category)
		subs := make([]string, len(e.Subcategories))
		copy(subs, e.Subcategories)
		t.categories[e.Category] = subs
	}
	return t
}

// Entry pairs a category with its valid subcategories.
type Entry struct {
	Category      string
	Subcategories []string
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	return New([]Entry{
		{"Food", []string{"Groceries", "Restaurant", "Delivery", "Other"}},
		{"Transport", []string{"Rideshare", "Fuel", "Public Transit", "Parking", "Other"}},
		{"Housing", []string{"Rent", "Condo Fees", "Electricity", "Water", "Internet", "Other"}},
		{"Health", []string{"Pharmacy", "Doctor", "Health Plan", "Other"}},
		{"Education", []string{"Courses", "Books", "Tuition", "Other"}},
		{"Entertainment", []string{"Streaming", "Travel", "Events", "Other"}},
		{"Shopping", []string{"Clothing", "Electronics", "Home", "Other"}},
		{"Services", []string{"Subscriptions", "Bank Fees", "Taxes", "Other"}},
		{"Income", []string{"Salary", "Freelance", "Refund", "Other"}},
		{CategoryYield, []string{"Interest", "Dividends", "Other"}},
		{CategoryInvestments, []string{"Redemption", "Contribution", "Other"}},
		{"Transfers", []string{"Pix", "Wire", "Other"}},
		{CategoryOther, []string{SubcategoryUncategorized}},
	})
}

// Categories returns the category names in declaration order.
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Subcategories returns the valid subcategories for a category, or nil when
// the category is unknown.
func (t *Taxonomy) Subcategories(category string) []string {
	subs, ok := t.categories[category]
	if !ok {
		return nil
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// IsValidCategory reports whether category is a member of the taxonomy.
func (t *Taxonomy) IsValidCategory(category string) bool {
	_, ok := t.categories[category]
	return ok
}

// IsValidSubcategory reports whether subcategory belongs to category's valid
// set.
func (t *Taxonomy) IsValidSubcategory(category, subcategory string) bool {
	for _, s := range t.categories[category] {
		if s == subcategory {
			return true
		}
	}
	return false
}

// DefaultSubcategory returns the safe default (first valid) subcategory for a
// category, or Uncategorized for unknown categories.
func (t *Taxonomy) DefaultSubcategory(category string) string {
	subs := t.categories[category]
	if len(subs) == 0 {
		return SubcategoryUncategorized
	}
	return subs[0]
}
