// Package currency derives the economy from raw stash data: it turns priced
// items into sale rows, maintains time-decayed per-league exchange summaries,
// and values arbitrary currencies in Chaos Orbs.
package currency

import "strings"

// ChaosOrb is the numeraire of the modeled economy; every value the package
// produces is denominated in it.
const ChaosOrb = "Chaos Orb"

// officialCurrencies maps the abbreviations used by the official trade site
// to canonical currency names.
var officialCurrencies = map[string]string{
	"alch":      "Orb of Alchemy",
	"alt":       "Orb of Alteration",
	"armour":    "Armourer's Scrap",
	"aug":       "Orb of Augmentation",
	"bauble":    "Glassblower's Bauble",
	"blessed":   "Blessed Orb",
	"chance":    "Orb of Chance",
	"chaos":     "Chaos Orb",
	"chisel":    "Cartographer's Chisel",
	"chrom":     "Chromatic Orb",
	"divine":    "Divine Orb",
	"eternal":   "Eternal Orb",
	"exa":       "Exalted Orb",
	"fuse":      "Orb of Fusing",
	"fusing":    "Orb of Fusing",
	"gcp":       "Gemcutter's Prism",
	"jew":       "Jeweller's Orb",
	"mirror":    "Mirror of Kalandra",
	"portal":    "Portal Scroll",
	"regal":     "Regal Orb",
	"regret":    "Orb of Regret",
	"scour":     "Orb of Scouring",
	"silver":    "Silver Coin",
	"transmute": "Orb of Transmutation",
	"vaal":      "Vaal Orb",
	"whetstone": "Blacksmith's Whetstone",
	"wisdom":    "Scroll of Wisdom",
}

// unofficialCurrencies maps shorthands observed in real price notes (and on
// third-party trade sites) to canonical names.
var unofficialCurrencies = map[string]string{
	"alchemy":          "Orb of Alchemy",
	"c":                "Chaos Orb",
	"chrome":           "Chromatic Orb",
	"eshs-breachstone": "Esh's Breachstone",
	"ex":               "Exalted Orb",
	"exalted":          "Exalted Orb",
	"fus":              "Orb of Fusing",
	"gemc":             "Gemcutter's Prism",
	"jewellers":        "Jeweller's Orb",
	"kalandra":         "Mirror of Kalandra",
	"minotaur":         "Fragment of the Minotaur",
	"mir":              "Mirror of Kalandra",
	"p":                "Perandus Coin",
	"shaper-set":       "Shaper's Orb",
	"vaal-orb":         "Vaal Orb",
}

// AliasMap maps lowercase abbreviations and dashed forms to canonical
// currency names. It is rebuilt at the start of every driver pass from the
// from-currency names already present in currency_summary, so the vocabulary
// grows with the economy without code changes.
type AliasMap map[string]string

// BuildAliasMap installs three keys per canonical name N: lower(N), the
// dashed lowercase form, and the dashed form with apostrophes removed.
func BuildAliasMap(names []string) AliasMap {
	m := make(AliasMap, len(names)*3)
	for _, name := range names {
		low := strings.ToLower(name)
		dashed := strings.ReplaceAll(low, " ", "-")
		m[low] = name
		m[dashed] = name
		m[strings.ReplaceAll(dashed, "'", "")] = name
	}
	return m
}

// Resolve looks an abbreviation up in the static tables and then the dynamic
// map. Returns the canonical name, or "" when unknown.
func (m AliasMap) Resolve(token string) string {
	low := strings.ToLower(token)
	if full, ok := officialCurrencies[low]; ok {
		return full
	}
	if full, ok := unofficialCurrencies[low]; ok {
		return full
	}
	if full, ok := m[low]; ok {
		return full
	}
	return ""
}
