package model

// ExtractedTerms holds the semantic fields pulled out of a single document's
// text. Values are the literal matched substrings, not normalized or parsed.
// Terms are transient: they are recomputed on every analysis run and never
// persisted.
type ExtractedTerms struct {
	// Multi-match fields accumulate every match, deduplicated by exact
	// string equality only.
	Owners        []string `json:"owners,omitempty"`
	Parties       []string `json:"parties,omitempty"`
	Contingencies []string `json:"contingencies,omitempty"`

	// Singular fields: first matching rule wins.
	PurchasePrice       string `json:"purchase_price,omitempty"`
	PossessionDate      string `json:"possession_date,omitempty"`
	ClosingDate         string `json:"closing_date,omitempty"`
	RegistrationNumber  string `json:"registration_number,omitempty"`
	RegistrationDate    string `json:"registration_date,omitempty"`
	EarnestMoney        string `json:"earnest_money,omitempty"`
	PropertyDescription string `json:"property_description,omitempty"`
}

// Empty reports whether no field was extracted at all.
func (t ExtractedTerms) Empty() bool {
	return len(t.Owners) == 0 && len(t.Parties) == 0 && len(t.Contingencies) == 0 &&
		t.PurchasePrice == "" && t.PossessionDate == "" && t.ClosingDate == "" &&
		t.RegistrationNumber == "" && t.RegistrationDate == "" && t.EarnestMoney == "" &&
		t.PropertyDescription == ""
}

// CrossDocTerms is the document-type-agnostic field set the consistency
// checker compares across documents. All values come from lowercased text.
type CrossDocTerms struct {
	SellerName          string `json:"seller_name,omitempty"`
	BuyerName           string `json:"buyer_name,omitempty"`
	PropertyDescription string `json:"property_description,omitempty"`
	PropertyAddress     string `json:"property_address,omitempty"`
	PurchasePrice       string `json:"purchase_price,omitempty"`
	Date                string `json:"date,omitempty"`
}

// Fields returns the comparable field map in a fixed order-independent form.
func (c CrossDocTerms) Fields() map[string]string {
	return map[string]string{
		"seller_name":          c.SellerName,
		"buyer_name":           c.BuyerName,
		"property_description": c.PropertyDescription,
		"property_address":     c.PropertyAddress,
		"purchase_price":       c.PurchasePrice,
		"date":                 c.Date,
	}
}
