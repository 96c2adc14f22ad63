package textnorm

import (
	"regexp"
	"strconv"
	"strings"
)

// Brazilian Portuguese number words.
var (
	units    = []string{"", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove"}
	teens    = []string{"dez", "onze", "doze", "treze", "quatorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove"}
	tens     = []string{"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa"}
	hundreds = []string{"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos", "seiscentos", "setecentos", "oitocentos", "novecentos"}

	// digitWords spells single digits, used for the fractional part of
	// decimals where each digit is read out individually.
	digitWords = []string{"zero", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove"}
)

var (
	currencyRe = regexp.MustCompile(`R\$\s*[\d.,]+`)
	percentRe  = regexp.MustCompile(`[\d.,]+\s*%`)
	thousandRe = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})+\b`)
	decimalRe  = regexp.MustCompile(`\b(\d+),(\d+)\b`)
)

// NumberToWords converts n to Brazilian Portuguese words. Values of a
// trillion or more are returned as digits; speech synthesis reads those
// acceptably and they are rare in conversation.
func NumberToWords(n int64) string {
	switch {
	case n == 0:
		return "zero"
	case n == 100:
		return "cem"
	case n < 0:
		return "menos " + NumberToWords(-n)
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n < 100:
		ten, unit := n/10, n%10
		if unit == 0 {
			return tens[ten]
		}
		return tens[ten] + " e " + units[unit]
	case n < 1000:
		hundred, rest := n/100, n%100
		if rest == 0 {
			return hundreds[hundred]
		}
		return hundreds[hundred] + " e " + NumberToWords(rest)
	case n < 1_000_000:
		thousand, rest := n/1000, n%1000
		word := "mil"
		if thousand > 1 {
			word = NumberToWords(thousand) + " mil"
		}
		if rest == 0 {
			return word
		}
		return word + " e " + NumberToWords(rest)
	case n < 1_000_000_000:
		million, rest := n/1_000_000, n%1_000_000
		word := "um milhão"
		if million > 1 {
			word = NumberToWords(million) + " milhões"
		}
		if rest == 0 {
			return word
		}
		return word + " e " + NumberToWords(rest)
	case n < 1_000_000_000_000:
		billion, rest := n/1_000_000_000, n%1_000_000_000
		word := "um bilhão"
		if billion > 1 {
			word = NumberToWords(billion) + " bilhões"
		}
		if rest == 0 {
			return word
		}
		return word + " e " + NumberToWords(rest)
	}
	return strconv.FormatInt(n, 10)
}

// currencyToWords converts a currency match ("R$ 1.234,56") to words.
func currencyToWords(value string) string {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.ReplaceAll(value, " ", ""), "R$"))
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	parts := strings.SplitN(cleaned, ",", 2)

	var reais, centavos int64
	if parts[0] != "" {
		reais, _ = strconv.ParseInt(parts[0], 10, 64)
	}
	if len(parts) > 1 && parts[1] != "" {
		cents := parts[1]
		if len(cents) < 2 {
			cents += "0"
		}
		centavos, _ = strconv.ParseInt(cents[:2], 10, 64)
	}

	var b strings.Builder
	if reais > 0 {
		b.WriteString(NumberToWords(reais))
		if reais == 1 {
			b.WriteString(" real")
		} else {
			b.WriteString(" reais")
		}
	}
	if centavos > 0 {
		if reais > 0 {
			b.WriteString(" e ")
		}
		b.WriteString(NumberToWords(centavos))
		if centavos == 1 {
			b.WriteString(" centavo")
		} else {
			b.WriteString(" centavos")
		}
	}
	if reais == 0 && centavos == 0 {
		return "zero reais"
	}
	return b.String()
}

// percentageToWords converts a percentage match ("12,5%", "7 %") to words.
func percentageToWords(value string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.TrimSuffix(strings.TrimSpace(value), "%"), " ", ""))

	sep := ""
	if strings.Contains(cleaned, ",") {
		sep = ","
	} else if strings.Contains(cleaned, ".") {
		sep = "."
	}

	if sep != "" {
		parts := strings.SplitN(cleaned, sep, 2)
		var whole, frac int64
		if parts[0] != "" {
			whole, _ = strconv.ParseInt(parts[0], 10, 64)
		}
		if len(parts) > 1 && parts[1] != "" {
			frac, _ = strconv.ParseInt(parts[1], 10, 64)
		}
		if frac == 0 {
			return NumberToWords(whole) + " por cento"
		}
		return NumberToWords(whole) + " vírgula " + NumberToWords(frac) + " por cento"
	}

	var n int64
	if cleaned != "" {
		n, _ = strconv.ParseInt(cleaned, 10, 64)
	}
	return NumberToWords(n) + " por cento"
}

// decimalToWords converts a plain decimal match ("3,14") to words, spelling
// each fractional digit individually.
func decimalToWords(whole, frac string) string {
	n, _ := strconv.ParseInt(whole, 10, 64)

	digits := make([]string, 0, len(frac))
	for _, d := range frac {
		if d >= '0' && d <= '9' {
			digits = append(digits, digitWords[d-'0'])
		}
	}
	return NumberToWords(n) + " vírgula " + strings.Join(digits, " ")
}

// NormalizeNumbers rewrites numeric expressions in text as Portuguese words
// so speech synthesis reads "R$ 1.500,00" as currency rather than digit soup.
// Currency is handled before percentages and plain numbers so each rewrite
// sees the text its pattern expects.
func NormalizeNumbers(text string) string {
	result := currencyRe.ReplaceAllStringFunc(text, currencyToWords)
	result = percentRe.ReplaceAllStringFunc(result, percentageToWords)
	result = thousandRe.ReplaceAllStringFunc(result, func(m string) string {
		n, _ := strconv.ParseInt(strings.ReplaceAll(m, ".", ""), 10, 64)
		return NumberToWords(n)
	})
	result = decimalRe.ReplaceAllStringFunc(result, func(m string) string {
		parts := decimalRe.FindStringSubmatch(m)
		return decimalToWords(parts[1], parts[2])
	})
	return result
}
