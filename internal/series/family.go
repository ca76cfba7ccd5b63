package series

import (
	"sort"
)

// Family identifies one dataset family published by NEFIN. Each family has
// its own identifier vocabulary, date layout and period vocabulary.
type Family string

const (
	FamilyCostOfCapital Family = "cost-of-capital"
	FamilyLoanFees      Family = "loan-fees"
	FamilyIlliquidity   Family = "illiquidity"
	FamilyRiskFactors   Family = "risk-factors"
)

// Resource is the canonical identifier of one remote spreadsheet. Several
// aliases may resolve to the same Resource.
type Resource string

// familySpec is the static description of a family. Values are never
// mutated after package initialisation.
type familySpec struct {
	family  Family
	label   string
	layout  DateLayout
	periods map[string]Period

	// aliases maps every accepted series key to its canonical resource.
	// Families with a single dataset accept the empty key.
	aliases map[string]Resource

	// locations maps canonical resources to paths relative to the base URL.
	locations map[Resource]string

	// canonical lists the keys that make up "all", in fetch order.
	canonical []string
}

const (
	costOfCapitalRoot = "Cost%20of%20Capital/"
	riskFactorsRoot   = "Risk%20Factors/"
	predictRoot       = "Predictability/"
	fileExt           = ".xls"
)

// Period vocabularies. Keys are matched exactly.
var (
	yearOnlyPeriods = map[string]Period{
		"":        PeriodNone,
		"day":     PeriodNone,
		"daily":   PeriodNone,
		"month":   PeriodNone,
		"monthly": PeriodNone,
		"year":    PeriodYearEnd,
		"yearly":  PeriodYearEnd,
	}
	monthAndYearPeriods = map[string]Period{
		"":        PeriodNone,
		"day":     PeriodNone,
		"daily":   PeriodNone,
		"month":   PeriodMonthEnd,
		"monthly": PeriodMonthEnd,
		"year":    PeriodYearEnd,
		"yearly":  PeriodYearEnd,
	}
)

var families = map[Family]*familySpec{
	FamilyCostOfCapital: {
		family:  FamilyCostOfCapital,
		label:   "sector cost of capital",
		layout:  LayoutMonthYearLabel,
		periods: yearOnlyPeriods,
		aliases: map[string]Resource{
			"Basic":          "Basic_Products",
			"Basic Products": "Basic_Products",
			"Basic_Products": "Basic_Products",
			"Basic_products": "Basic_Products",
			"Construction":   "Construction",
			"Consumer":       "Consumer",
			"Energy":         "Energy",
			"Finance":        "Finance",
			"Manufacturing":  "Manufacturing",
			"Other":          "Other",
			"Others":         "Other",
		},
		locations: map[Resource]string{
			"Basic_Products": costOfCapitalRoot + "Basic%20Products" + fileExt,
			"Construction":   costOfCapitalRoot + "Construction" + fileExt,
			"Consumer":       costOfCapitalRoot + "Consumer" + fileExt,
			"Energy":         costOfCapitalRoot + "Energy" + fileExt,
			"Finance":        costOfCapitalRoot + "Finance" + fileExt,
			"Manufacturing":  costOfCapitalRoot + "Manufacturing" + fileExt,
			"Other":          costOfCapitalRoot + "Other" + fileExt,
		},
		canonical: []string{"Basic", "Construction", "Consumer", "Energy", "Finance", "Manufacturing", "Other"},
	},
	FamilyLoanFees: {
		family:  FamilyLoanFees,
		label:   "loan fees",
		layout:  LayoutYearMonthDay,
		periods: monthAndYearPeriods,
		aliases: map[string]Resource{
			"":          "loan_fees",
			"loan_fees": "loan_fees",
		},
		locations: map[Resource]string{
			"loan_fees": predictRoot + "loan_fees" + fileExt,
		},
		canonical: []string{""},
	},
	FamilyIlliquidity: {
		family:  FamilyIlliquidity,
		label:   "market illiquidity index",
		layout:  LayoutYearMonth,
		periods: yearOnlyPeriods,
		aliases: map[string]Resource{
			"":                 "Market_Liquidity",
			"Market_Liquidity": "Market_Liquidity",
		},
		locations: map[Resource]string{
			"Market_Liquidity": riskFactorsRoot + "Market_Liquidity" + fileExt,
		},
		canonical: []string{""},
	},
	FamilyRiskFactors: {
		family:  FamilyRiskFactors,
		label:   "risk factor",
		layout:  LayoutYearMonthDay,
		periods: monthAndYearPeriods,
		aliases: map[string]Resource{
			"Mkt":         "Market_Factor",
			"Market":      "Market_Factor",
			"Rm_minus_Rf": "Market_Factor",
			"SMB":         "SMB_Factor",
			"HML":         "HML_Factor",
			"WML":         "WML_Factor",
			"IML":         "IML_Factor",
			"Rf":          "Risk_Free",
			"Risk_free":   "Risk_Free",
			"Risk Free":   "Risk_Free",
			"Risk free":   "Risk_Free",
			"Risk-free":   "Risk_Free",
			"Risk-Free":   "Risk_Free",
		},
		locations: map[Resource]string{
			"Market_Factor": riskFactorsRoot + "Market_Factor" + fileExt,
			"SMB_Factor":    riskFactorsRoot + "SMB_Factor" + fileExt,
			"HML_Factor":    riskFactorsRoot + "HML_Factor" + fileExt,
			"WML_Factor":    riskFactorsRoot + "WML_Factor" + fileExt,
			"IML_Factor":    riskFactorsRoot + "IML_Factor" + fileExt,
			"Risk_Free":     riskFactorsRoot + "Risk_Free" + fileExt,
		},
		canonical: []string{"Market", "SMB", "HML", "WML", "IML", "Rf"},
	},
}

// Families returns every known family in a stable order.
func Families() []Family {
	return []Family{FamilyCostOfCapital, FamilyLoanFees, FamilyIlliquidity, FamilyRiskFactors}
}

// ParseFamily validates a family name.
func ParseFamily(name string) (Family, error) {
	if _, ok := families[Family(name)]; !ok {
		return "", lookupError(ErrUnknownFamily, "family %q is not recognised", name)
	}
	return Family(name), nil
}

func specFor(f Family) (*familySpec, error) {
	spec, ok := families[f]
	if !ok {
		return nil, lookupError(ErrUnknownFamily, "family %q is not recognised", string(f))
	}
	return spec, nil
}

// Label returns a human-readable name for the family.
func (f Family) Label() string {
	if spec, ok := families[f]; ok {
		return spec.label
	}
	return string(f)
}

// Layout returns the date layout used by the family's spreadsheets.
func (f Family) Layout() DateLayout {
	if spec, ok := families[f]; ok {
		return spec.layout
	}
	return 0
}

// Keys returns every accepted series key for the family, sorted. Single
// dataset families return only their explicit resource name.
func (f Family) Keys() []string {
	spec, ok := families[f]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(spec.aliases))
	for k := range spec.aliases {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// CanonicalKeys returns the keys that "all" expands to, in fetch order.
func (f Family) CanonicalKeys() []string {
	spec, ok := families[f]
	if !ok {
		return nil
	}
	return append([]string(nil), spec.canonical...)
}

// PeriodTokens returns the accepted aggregation period tokens, sorted.
// The empty token (no aggregation) is included.
func (f Family) PeriodTokens() []string {
	spec, ok := families[f]
	if !ok {
		return nil
	}
	tokens := make([]string, 0, len(spec.periods))
	for k := range spec.periods {
		tokens = append(tokens, k)
	}
	sort.Strings(tokens)
	return tokens
}

// Resolve maps a series key to its canonical resource and its location
// relative to the base URL.
func (f Family) Resolve(key string) (Resource, string, error) {
	spec, err := specFor(f)
	if err != nil {
		return "", "", err
	}
	return spec.resolve(key)
}

func (s *familySpec) resolve(key string) (Resource, string, error) {
	res, ok := s.aliases[key]
	if !ok {
		return "", "", lookupError(ErrUnknownSeries, "%s %q is not recognised", s.label, key).
			WithContext("family", string(s.family)).
			WithContext("series", key)
	}
	return res, s.locations[res], nil
}

// ParsePeriod maps an aggregation token to a Period using the family's
// vocabulary.
func (f Family) ParsePeriod(token string) (Period, error) {
	spec, err := specFor(f)
	if err != nil {
		return PeriodNone, err
	}
	return spec.parsePeriod(token)
}

func (s *familySpec) parsePeriod(token string) (Period, error) {
	p, ok := s.periods[token]
	if !ok {
		return PeriodNone, lookupError(ErrUnknownPeriod, "aggregation %q is not supported for %s data", token, s.label).
			WithContext("family", string(s.family)).
			WithContext("aggregation", token)
	}
	return p, nil
}
