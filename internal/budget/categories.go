package budget

import "strings"

// accountCategories maps GL account code prefixes to spend categories.
// Codes follow the standard production chart of accounts for the 2300
// location series.
var accountCategories = map[string]string{
	"2301": "Loc Labor",
	"2302": "Loc Labor",
	"2305": "Loc Labor",
	"2310": "Loc Labor",
	"2335": "Loc Fees",
	"2336": "Loc Fees",
	"2340": "Security",
	"2345": "Police & Fire",
	"2350": "Permits",
	"2355": "Parking",
	"2360": "Cleaning",
	"2365": "Rentals",
	"2399": "Loc Labor",
}

// CategoryForAccount derives a spend category from a GL account code,
// falling back to the longest matching prefix, then "Uncategorized".
func CategoryForAccount(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Uncategorized"
	}
	if category, ok := accountCategories[code]; ok {
		return category
	}
	for l := len(code) - 1; l >= 2; l-- {
		if category, ok := accountCategories[code[:l]]; ok {
			return category
		}
	}
	return "Uncategorized"
}
