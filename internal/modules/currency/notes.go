package currency

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// The price note mini-grammar: a marker ("~price" or "~b/o"), an amount
// (decimal or decimal/decimal), and a currency token. The strict form does
// not allow spaces in the token; the space-tolerant form exists so that full
// names like "orb of chance" parse, and is only used as a one-shot fallback
// after the strict form's token misses every alias table.
var (
	priceRe          = regexp.MustCompile(`~(price|b/o)\s+([\d.]+(?:/[\d.]+)?)\s+([A-Za-z0-9'\-]+)`)
	priceWithSpaceRe = regexp.MustCompile(`~(price|b/o)\s+([\d.]+(?:/[\d.]+)?)\s+([A-Za-z0-9'\- ]+)`)
)

// NoteParser extracts (amount, canonical currency) pairs from user-authored
// price notes. The alias map is a per-pass snapshot and is read-only here.
type NoteParser struct {
	aliases AliasMap
	log     zerolog.Logger
}

// NewNoteParser creates a note parser over the given alias snapshot.
func NewNoteParser(aliases AliasMap, log zerolog.Logger) *NoteParser {
	return &NoteParser{
		aliases: aliases,
		log:     log.With().Str("component", "note-parser").Logger(),
	}
}

// Parse extracts the price from a note. Returns ok=false when the note
// carries no valid price: no marker, a malformed amount, a zero denominator,
// or an unknown currency abbreviation.
func (p *NoteParser) Parse(note string) (amount float64, currencyName string, ok bool) {
	return p.parse(note, priceRe)
}

func (p *NoteParser) parse(note string, re *regexp.Regexp) (float64, string, bool) {
	if note == "" {
		return 0, "", false
	}

	match := re.FindStringSubmatch(note)
	if match == nil {
		return 0, "", false
	}

	// match[1] is the sale type (price vs b/o); both mean the same here.
	amount, ok := parseAmount(match[2])
	if !ok {
		// Numeric failures never retry with the other grammar.
		p.log.Debug().Str("note", note).Msg("Invalid price")
		return 0, "", false
	}

	token := strings.TrimSpace(match[3])
	if full := p.aliases.Resolve(token); full != "" {
		return amount, full, true
	}

	if re == priceRe {
		// The strict token may have cut a multi-word name short; try once
		// with the space-tolerant grammar.
		return p.parse(note, priceWithSpaceRe)
	}

	p.log.Warn().
		Str("note", note).
		Str("currency", token).
		Msg("Price note has unknown currency abbreviation")
	return 0, "", false
}

// parseAmount handles plain decimals and num/den fractions. A zero
// denominator or an unparsable literal fails the note.
func parseAmount(s string) (float64, bool) {
	if num, den, found := strings.Cut(s, "/"); found {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
