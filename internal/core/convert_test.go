package core

import (
	"reflect"
	"testing"
)

// ----------------------------------------------------------------------------
// ParseMoney Tests
// ----------------------------------------------------------------------------

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		currency     string
		wantAmount   string
		wantCurrency string
		wantErr      bool
	}{
		{name: "amount with currency", input: "19.99 EUR", currency: "USD", wantAmount: "19.99", wantCurrency: "EUR"},
		{name: "comma decimal uses default", input: "19,99", currency: "USD", wantAmount: "19.99", wantCurrency: "USD"},
		{name: "integer amount", input: "20", currency: "EUR", wantAmount: "20", wantCurrency: "EUR"},
		{name: "single decimal digit", input: "5.5 GBP", currency: "EUR", wantAmount: "5.5", wantCurrency: "GBP"},
		{name: "surrounding whitespace", input: "  7.00 EUR ", currency: "USD", wantAmount: "7.00", wantCurrency: "EUR"},
		{name: "leading zeros stripped", input: "007.50", currency: "EUR", wantAmount: "7.50", wantCurrency: "EUR"},
		{name: "zero", input: "0", currency: "EUR", wantAmount: "0", wantCurrency: "EUR"},
		{name: "three decimals rejected", input: "19.999", currency: "EUR", wantErr: true},
		{name: "lowercase currency rejected", input: "19.99 eur", currency: "EUR", wantErr: true},
		{name: "currency symbol rejected", input: "€19.99", currency: "EUR", wantErr: true},
		{name: "negative rejected", input: "-5", currency: "EUR", wantErr: true},
		{name: "text rejected", input: "free", currency: "EUR", wantErr: true},
		{name: "empty rejected", input: "", currency: "EUR", wantErr: true},
		{name: "too many digits", input: "123456789.00", currency: "EUR", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseMoney(%q) = %+v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tt.input, err)
			}
			if got.Amount != tt.wantAmount || got.Currency != tt.wantCurrency {
				t.Errorf("ParseMoney(%q) = %s/%s, want %s/%s",
					tt.input, got.Amount, got.Currency, tt.wantAmount, tt.wantCurrency)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseBool Tests
// ----------------------------------------------------------------------------

func TestParseBool(t *testing.T) {
	tests := []struct {
		input  string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"yes", true, true},
		{"1", true, true},
		{" y ", true, true},
		{"false", false, true},
		{"No", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseBool(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseBool(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseImageLinks Tests
// ----------------------------------------------------------------------------

func TestParseImageLinks(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "json array",
			input: `["https://a.example/1.jpg", "https://a.example/2.jpg"]`,
			want:  []string{"https://a.example/1.jpg", "https://a.example/2.jpg"},
		},
		{
			name:  "comma separated",
			input: "https://a.example/1.jpg, http://a.example/2.jpg",
			want:  []string{"https://a.example/1.jpg", "http://a.example/2.jpg"},
		},
		{
			name:  "trailing comma ignored",
			input: "https://a.example/1.jpg,",
			want:  []string{"https://a.example/1.jpg"},
		},
		{name: "malformed json", input: `["https://a.example/1.jpg"`, wantErr: true},
		{name: "non url entry", input: "https://a.example/1.jpg, ftp://x", wantErr: true},
		{name: "empty array", input: "[]", wantErr: true},
		{name: "only separators", input: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseImageLinks(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseImageLinks(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseImageLinks(%q) unexpected error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseImageLinks(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseHandlingTime Tests
// ----------------------------------------------------------------------------

func TestParseHandlingTime(t *testing.T) {
	if n, err := ParseHandlingTime(" 3 "); err != nil || n != 3 {
		t.Errorf("ParseHandlingTime(\" 3 \") = (%d, %v), want (3, nil)", n, err)
	}
	if n, err := ParseHandlingTime("0"); err != nil || n != 0 {
		t.Errorf("ParseHandlingTime(\"0\") = (%d, %v), want (0, nil)", n, err)
	}
	for _, bad := range []string{"-1", "2.5", "two", "", "2147483648"} {
		if _, err := ParseHandlingTime(bad); err == nil {
			t.Errorf("ParseHandlingTime(%q) expected error", bad)
		}
	}
}

// ----------------------------------------------------------------------------
// Format Regex Tests
// ----------------------------------------------------------------------------

func TestFieldFormats(t *testing.T) {
	tests := []struct {
		name  string
		match func(string) bool
		input string
		want  bool
	}{
		{"shipping valid", shippingRegex.MatchString, "DE:4.95 EUR", true},
		{"shipping integer price", shippingRegex.MatchString, "US:0 USD", true},
		{"shipping lowercase country", shippingRegex.MatchString, "de:4.95 EUR", false},
		{"shipping missing currency", shippingRegex.MatchString, "DE:4.95", false},
		{"dimension cm", dimensionRegex.MatchString, "20 cm", true},
		{"dimension decimal m", dimensionRegex.MatchString, "1.5 m", true},
		{"dimension no unit", dimensionRegex.MatchString, "20", false},
		{"dimension inches", dimensionRegex.MatchString, "20 in", false},
		{"weight kg", weightRegex.MatchString, "0.5 kg", true},
		{"weight g", weightRegex.MatchString, "500 g", true},
		{"weight lb", weightRegex.MatchString, "1 lb", false},
		{"url https", IsHTTPURL, "https://shop.example/p/1", true},
		{"url ftp", IsHTTPURL, "ftp://shop.example", false},
		{"url bare host", IsHTTPURL, "shop.example", false},
		{"digits", IsDigits, "4006381333931", true},
		{"digits with letter", IsDigits, "40063813339X1", false},
		{"digits empty", IsDigits, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match(tt.input); got != tt.want {
				t.Errorf("match(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},
		{name: "surrounded by whitespace", input: "  hello  ", want: "hello"},
		{name: "tabs and newlines", input: "\thello\n", want: "hello"},
		{name: "Excel text guard", input: `="00123"`, want: "00123"},
		{name: "Excel guard with whitespace", input: `  ="test"  `, want: "test"},
		{name: "Excel guard around blank", input: `=""`, want: ""},
		{name: "formula left alone", input: "=SUM(A1)", want: "=SUM(A1)"},
		{name: "plain quotes kept", input: `"hello"`, want: `"hello"`},
		{name: "decomposed umlaut composed", input: "Müsli", want: "Müsli"},
		{name: "composed stays composed", input: "Müsli", want: "Müsli"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
