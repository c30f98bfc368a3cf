package nlu

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type priceUnit struct {
	word       string
	multiplier float64
}

// priceUnits is ordered longest word first so "triệu" wins over "tr".
var priceUnits = []priceUnit{
	{"thousand", 1e3},
	{"million", 1e6},
	{"triệu", 1e6},
	{"nghìn", 1e3},
	{"ngàn", 1e3},
	{"tr", 1e6},
	{"k", 1e3},
	{"m", 1e6},
}

// Amounts below this with no unit are read as thousands of đồng.
const implicitThousandsBelow = 1000

var (
	priceTokenRe     = regexp.MustCompile(`^(\d+(?:[.,]\d+)*)\s*(\p{L}*)$`)
	thousandsGroupRe = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
	decimalRe        = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
)

func lookupUnit(word string) (float64, bool) {
	for _, u := range priceUnits {
		if u.word == word {
			return u.multiplier, true
		}
	}
	return 0, false
}

// ResolvePrice converts a price token such as "500k", "1tr", "1.5m",
// "200.000" or "300" into whole đồng. When the token has no unit suffix the
// unit word directly after the number in message is used; failing that,
// values under 1000 are multiplied by 1000. Non-numeric tokens return false.
func ResolvePrice(token, message string) (int64, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	m := priceTokenRe.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	number, suffix := m[1], m[2]

	value, ok := parseAmount(number)
	if !ok {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case suffix != "":
		mult, known := lookupUnit(suffix)
		if !known {
			return 0, false
		}
		multiplier = mult
	default:
		if mult, found := unitAfterNumber(Normalize(message), number); found {
			multiplier = mult
		} else if value < implicitThousandsBelow {
			multiplier = 1e3
		}
	}

	return int64(math.Round(value * multiplier)), true
}

// parseAmount strips thousands separators from grouped numbers and reads a
// single '.' or ',' otherwise as a decimal point.
func parseAmount(number string) (float64, bool) {
	var cleaned string
	switch {
	case thousandsGroupRe.MatchString(number):
		cleaned = strings.NewReplacer(".", "", ",", "").Replace(number)
	case decimalRe.MatchString(number):
		cleaned = strings.Replace(number, ",", ".", 1)
	default:
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// unitAfterNumber finds number in message as a whole number and returns the
// multiplier of a unit word that immediately follows it.
func unitAfterNumber(message, number string) (float64, bool) {
	if message == "" {
		return 0, false
	}
	offset := 0
	for offset < len(message) {
		i := strings.Index(message[offset:], number)
		if i < 0 {
			return 0, false
		}
		start := offset + i
		end := start + len(number)
		offset = end

		if start > 0 && isNumberRune(lastRune(message[:start])) {
			continue
		}
		rest := message[end:]
		if rest != "" && isNumberRune(firstRune(rest)) {
			continue
		}
		rest = strings.TrimLeft(rest, " ")
		for _, u := range priceUnits {
			if strings.HasPrefix(rest, u.word) && boundaryAfter(rest, len(u.word)) {
				return u.multiplier, true
			}
		}
		return 0, false
	}
	return 0, false
}

func isNumberRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.' || r == ','
}

// isPriceToken reports whether a keyword token is a price expression
// ("500k", "1.5tr", "200.000") that must not leak into the search term.
func isPriceToken(token string) bool {
	m := priceTokenRe.FindStringSubmatch(token)
	if m == nil {
		return false
	}
	if m[2] == "" {
		return true
	}
	_, ok := lookupUnit(m[2])
	return ok
}

func isUnitWord(token string) bool {
	_, ok := lookupUnit(token)
	return ok
}
