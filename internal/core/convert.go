package core

// convert.go turns raw feed text into typed values. Every parser works on a
// trimmed string and reports failure through an error so the validator can
// decide how severe the failure is for the field at hand.

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"
)

var (
	moneyRegex     = regexp.MustCompile(`^(\d+)(?:[.,](\d{1,2}))?(?:\s+([A-Z]{3}))?$`)
	shippingRegex  = regexp.MustCompile(`^[A-Z]{2}:\d+(\.\d{1,2})?\s[A-Z]{3}$`)
	dimensionRegex = regexp.MustCompile(`^\d+(\.\d+)?\s(cm|mm|m)$`)
	weightRegex    = regexp.MustCompile(`^\d+(\.\d+)?\s(kg|g)$`)
	digitsRegex    = regexp.MustCompile(`^\d+$`)
)

// maxAmountDigits matches the numeric(10,2) price columns.
const maxAmountDigits = 8

// ParseMoney parses "<amount> <CUR>" or a bare amount. A comma decimal
// separator is accepted; a bare amount takes defaultCurrency.
func ParseMoney(s, defaultCurrency string) (catalog.Money, error) {
	s = strings.TrimSpace(s)
	m := moneyRegex.FindStringSubmatch(s)
	if m == nil {
		return catalog.Money{}, errors.Newf("%q must look like '123.45 EUR' or '123,45'", s)
	}

	whole := strings.TrimLeft(m[1], "0")
	if whole == "" {
		whole = "0"
	}
	if len(whole) > maxAmountDigits {
		return catalog.Money{}, errors.Newf("%q exceeds %d integer digits", s, maxAmountDigits)
	}

	amount := whole
	if m[2] != "" {
		amount += "." + m[2]
	}

	currency := m[3]
	if currency == "" {
		currency = defaultCurrency
	}
	return catalog.Money{Amount: amount, Currency: currency}, nil
}

// ParseBool accepts the usual truthy and falsy tokens. ok is false for
// anything else.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// ParseImageLinks accepts a JSON array of URLs or a comma-separated list.
func ParseImageLinks(s string) ([]string, error) {
	s = strings.TrimSpace(s)

	var links []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &links); err != nil {
			return nil, errors.Wrap(err, "not a JSON array of strings")
		}
	} else {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				links = append(links, part)
			}
		}
	}

	if len(links) == 0 {
		return nil, errors.New("no links found")
	}
	for _, l := range links {
		if !IsHTTPURL(l) {
			return nil, errors.Newf("invalid URL %q", l)
		}
	}
	return links, nil
}

// ParseHandlingTime parses a non-negative day count.
func ParseHandlingTime(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("must be a whole number of days")
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	if n > math.MaxInt32 {
		return 0, errors.New("is too large")
	}
	return n, nil
}

// IsHTTPURL reports whether s uses the http or https scheme.
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	return digitsRegex.MatchString(s)
}

// CleanCell normalizes a raw cell: trims whitespace, removes Excel text
// guards (="...") and NFC-normalizes the result.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return strings.TrimSpace(s)
}
