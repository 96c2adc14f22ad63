// Package textnorm prepares text for speech synthesis in Brazilian
// Portuguese.
//
// Raw assistant output is full of things TTS engines mispronounce: numeric
// currency, percentages, and the acronym-heavy vocabulary of Brazilian
// economics ("IPCA", "Selic", "BNDES"). The pipeline rewrites numbers as
// words and applies a phonetic substitution map so the synthesized speech
// sounds like a person reading the text aloud.
//
// Callers normalize before synthesis and keep the original text for display;
// caption alignment maps the timing back onto the original spelling.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultPhoneticMap spells out how common acronyms and loanwords should be
// pronounced. Keys are matched case-sensitively as written here, except that
// word-shaped terms match case-insensitively on word boundaries.
var DefaultPhoneticMap = map[string]string{
	// Economy
	"PIB": "pi-bi", "IPCA": "ípeca", "IGP-M": "igepê-ême", "INPC": "inepecê",
	"CDI": "cedê-í", "PMC": "peemecê",

	// Institutions
	"BCB": "becebê", "BACEN": "bacém", "COPOM": "copóm", "CMN": "ceemêne",
	"CVM": "cevêeme", "BNDES": "beenedéesse", "IBGE": "ibegê", "IPEA": "ipéa",
	"FGV": "efegêvê", "FIPE": "fípi", "DIEESE": "diêsse", "CAGED": "cajéd",
	"INSS": "inêssi", "FGTS": "efegêtêesse", "CLT": "cêeletê", "MEI": "mêi",
	"CNPJ": "ceenepêjóta", "CPF": "cêpêéfe",

	// Rates and indicators
	"Selic": "séliqui", "SELIC": "séliqui", "PTAX": "petáx", "TR": "têérre",
	"IOF": "iôéfe", "IR": "iérre", "IRPF": "iérrepêéfe", "ICMS": "icemésse",
	"IPI": "ipí", "PIS": "pís", "COFINS": "cofíns",

	// Financial market
	"IPO": "ipô", "ETF": "ítêéfe", "CDB": "cedêbê", "LCI": "élecêí",
	"LCA": "élecêá", "FII": "fiî", "NTN": "ênetêene",

	// International
	"FMI": "éfemí", "ONU": "onú", "OMC": "ômecê", "OCDE": "ócedê",
	"BCE": "becê", "FED": "féd", "G20": "gê vínti", "BRICS": "brícs",
	"EUA": "êuá",

	// Currencies
	"USD": "dólar", "BRL": "real", "EUR": "êuro", "GBP": "líbra",

	// Technology
	"IA": "iá", "AI": "êi ái", "API": "apí", "PDF": "pedêéfe", "URL": "urél",

	// English loanwords, Brazilian pronunciation
	"spread": "sprééd", "hedge": "hédji", "swap": "suóp", "default": "defólt",
	"rating": "rêitin", "benchmark": "bêntchmark", "commodities": "comóditis",
	"commodity": "comóditi", "target": "târguet", "stop": "istóp",
	"day trade": "dêi trêid", "home broker": "hôme brôker",

	// Brand
	"IconsAI": "aiconseiai", "iconsai": "aiconseiai", "ICONSAI": "aiconseiai",
}

// wordShapedRe decides whether a term can be matched on word boundaries.
// Terms with punctuation ("IGP-M") fall back to literal replacement.
var wordShapedRe = regexp.MustCompile(`^[\w\s]+$`)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// rule is one prepared substitution.
type rule struct {
	replacement string
	re          *regexp.Regexp // nil means literal replacement of term
	term        string
}

// buildRules turns a phonetic map into substitution rules ordered longest
// term first, so "day trade" wins over "day" and partial overlaps never
// corrupt longer terms.
func buildRules(m map[string]string) []rule {
	terms := make([]string, 0, len(m))
	for t := range m {
		if strings.TrimSpace(t) == "" {
			continue
		}
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	rules := make([]rule, 0, len(terms))
	for _, t := range terms {
		r := rule{term: t, replacement: m[t]}
		if wordShapedRe.MatchString(t) {
			r.re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
		} else {
			// Literal terms get surrounding spaces so the replacement does
			// not glue onto neighbouring words.
			r.replacement = " " + r.replacement + " "
		}
		rules = append(rules, r)
	}
	return rules
}

var defaultRules = buildRules(DefaultPhoneticMap)

// ApplyPhoneticMap replaces known terms in text with their pronunciations.
// Entries in custom override the defaults; a nil or empty custom map uses
// the defaults as-is.
func ApplyPhoneticMap(text string, custom map[string]string) string {
	rules := defaultRules
	if len(custom) > 0 {
		merged := make(map[string]string, len(DefaultPhoneticMap)+len(custom))
		for k, v := range DefaultPhoneticMap {
			merged[k] = v
		}
		for k, v := range custom {
			merged[k] = v
		}
		rules = buildRules(merged)
	}

	out := text
	for _, r := range rules {
		if r.re != nil {
			out = r.re.ReplaceAllString(out, r.replacement)
		} else {
			out = strings.ReplaceAll(out, r.term, r.replacement)
		}
	}
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(out, " "))
}

// Prepare runs the full pipeline: sanitize, expand numbers, apply the
// phonetic map. The result is what gets sent to the TTS provider; the
// original text is kept for display.
func Prepare(text string, custom map[string]string) string {
	sanitized := strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(text))
	return ApplyPhoneticMap(NormalizeNumbers(sanitized), custom)
}
