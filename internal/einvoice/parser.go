// Package einvoice parses and validates the two QR payloads printed on
// Taiwan e-invoice (電子發票) paper.
//
// Field boundaries are positional, per the national e-invoice QR layout:
// both payloads open with a shared 21-character key
// (invoice number 10 + ROC date 7 + random code 4), followed in the header
// payload by the sales amount (8 hex chars), total amount (8 hex chars),
// buyer tax ID (8) and seller tax ID (8). Any length or charset mismatch is
// a hard failure, never a best-effort guess.
package einvoice

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/yuchilin/storeledger/internal/domain/entity"
)

const (
	keyLen    = 21 // invoice number(10) + ROC date(7) + random(4)
	headerLen = 53 // key + sales hex(8) + total hex(8) + buyer(8) + seller(8)

	offSalesHex = 21
	offTotalHex = 29
	offBuyerID  = 37
	offSellerID = 45
)

var (
	invoiceNumberRE = regexp.MustCompile(`^[A-Z]{2}[0-9]{8}$`)
	rocDateRE       = regexp.MustCompile(`^[0-9]{7}$`)
	randomCodeRE    = regexp.MustCompile(`^[0-9A-Za-z]{4}$`)
	amountHexRE     = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)
	taxIDRE         = regexp.MustCompile(`^[0-9]{8}$`)
	numberRE        = regexp.MustCompile(`^-?[0-9]+(?:\.[0-9]+)?$`)

	// The 21-char key may appear later in a payload when the decoder
	// prepends junk (BOM, control noise).
	keyAnywhereRE = regexp.MustCompile(`[A-Z]{2}[0-9]{8}[0-9]{7}[0-9A-Za-z]{4}`)
)

// ParsedInvoice is the structured candidate produced from a QR pair.
// It has passed structural parsing only; validation happens separately.
type ParsedInvoice struct {
	InvoiceNumber string
	InvoiceDate   time.Time
	RandomCode    string
	SellerID      string
	BuyerID       string
	SalesAmount   int64 // whole NTD
	TaxAmount     int64 // total - sales; negative values are caught by validation
	TotalAmount   int64
	Items         []entity.InvoiceItem
}

// CleanText normalizes decoded QR text: drops the BOM, removes non-printable
// characters, and trims surrounding whitespace. Some decoders prepend control
// noise to otherwise valid payloads.
func CleanText(raw string) string {
	s := strings.ReplaceAll(raw, "\uFEFF", "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// FindKey locates the 21-character invoice key inside a payload and returns
// the key and its start index. ok is false when no valid key is present.
func FindKey(raw string) (key string, start int, ok bool) {
	s := CleanText(raw)
	if len(s) < keyLen {
		return "", 0, false
	}

	// Fast path: the key is expected at position 0.
	if k, valid := validKey(strings.ToUpper(s[:10]) + s[10:keyLen]); valid {
		return k, 0, true
	}

	m := keyAnywhereRE.FindStringIndex(s)
	if m == nil {
		return "", 0, false
	}
	if k, valid := validKey(s[m[0]:m[0]+keyLen]); valid {
		return k, m[0], true
	}
	return "", 0, false
}

func validKey(candidate string) (string, bool) {
	if len(candidate) != keyLen {
		return "", false
	}
	number := strings.ToUpper(candidate[:10])
	rocDate := candidate[10:17]
	random := candidate[17:21]
	if invoiceNumberRE.MatchString(number) && rocDateRE.MatchString(rocDate) && randomCodeRE.MatchString(random) {
		return number + rocDate + random, true
	}
	return "", false
}

// ROCDate converts a 7-digit ROC-calendar date (YYYMMDD) to a Gregorian date.
func ROCDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !rocDateRE.MatchString(s) {
		return time.Time{}, &entity.FormatError{
			Field:  "invoice_date",
			Reason: "expected 7-digit ROC date (YYYMMDD)",
			Raw:    s,
		}
	}
	year, _ := strconv.Atoi(s[0:3])
	month, _ := strconv.Atoi(s[3:5])
	day, _ := strconv.Atoi(s[5:7])
	d := time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes out-of-range components; reject instead.
	if int(d.Month()) != month || d.Day() != day {
		return time.Time{}, &entity.FormatError{
			Field:  "invoice_date",
			Reason: "calendar date out of range",
			Raw:    s,
		}
	}
	return d, nil
}

// FormatNumber renders an invoice number as "AB-12345678" when well-formed.
func FormatNumber(number string) string {
	s := strings.ToUpper(strings.TrimSpace(number))
	if invoiceNumberRE.MatchString(s) {
		return s[:2] + "-" + s[2:]
	}
	return s
}

// NoContinuation reports whether the second QR payload is the
// "no continuation" marker: blank, or "**" with optional padding. This is not
// a decode failure; it means every item fit in the first QR.
func NoContinuation(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || trimmed == "**"
}

// Parse decodes a captured QR pair into a structured invoice candidate.
// When qrRight is absent or a no-continuation marker, qrLeft alone is parsed.
func Parse(qrLeft, qrRight string) (*ParsedInvoice, error) {
	a := CleanText(qrLeft)
	if a == "" {
		return nil, &entity.FormatError{Field: "qr_left", Reason: "payload is empty"}
	}

	if NoContinuation(qrRight) {
		if _, pos, ok := FindKey(a); ok {
			a = a[pos:]
		}
		return parseAligned(a, a)
	}
	return ParsePair(qrLeft, qrRight)
}

// ParsePair decodes the two QR payloads of one physical invoice. Both must
// share the same 21-character key.
func ParsePair(qrLeft, qrRight string) (*ParsedInvoice, error) {
	a := CleanText(qrLeft)
	b := CleanText(qrRight)
	if a == "" || b == "" {
		return nil, &entity.FormatError{Field: "qr_pair", Reason: "need 2 non-empty QR payloads"}
	}

	// Align both payloads to the key when a decoder prepended junk.
	keyA, posA, okA := FindKey(a)
	keyB, posB, okB := FindKey(b)
	if okA && okB && keyA == keyB {
		a = a[posA:]
		b = b[posB:]
	}

	if len(a) < headerLen && len(b) < headerLen {
		return nil, &entity.FormatError{
			Field:  "qr_pair",
			Reason: "payload too short; not a Taiwan e-invoice QR",
			Raw:    a,
		}
	}

	if len(a) < keyLen || len(b) < keyLen || a[:keyLen] != b[:keyLen] {
		// Fall back to the longest common prefix; anything shorter than the
		// key means the two payloads are not the same invoice.
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		i := 0
		for i < n && a[i] == b[i] {
			i++
		}
		if i < keyLen {
			return nil, &entity.FormatError{
				Field:  "qr_pair",
				Reason: "payloads do not describe the same invoice (prefix mismatch)",
			}
		}
	}

	base := a
	if len(base) < headerLen {
		base = b
	}
	itemsSource := a
	if strings.Count(b, ":") > strings.Count(a, ":") {
		itemsSource = b
	}
	return parseAligned(base, itemsSource)
}

// parseAligned parses fixed-position header fields from base and recovers
// items from itemsSource. base must start at the invoice key.
func parseAligned(base, itemsSource string) (*ParsedInvoice, error) {
	if len(base) < headerLen {
		return nil, &entity.FormatError{
			Field:  "qr_payload",
			Reason: "payload too short; not a Taiwan e-invoice QR",
			Raw:    base,
		}
	}

	key, ok := validKey(base[:keyLen])
	if !ok {
		return nil, &entity.FormatError{
			Field:  "invoice_key",
			Reason: "first 21 characters are not a valid invoice key",
			Raw:    base[:keyLen],
		}
	}

	invoiceDate, err := ROCDate(key[10:17])
	if err != nil {
		return nil, err
	}

	sales, err := parseAmountHex("sales_amount", base[offSalesHex:offTotalHex])
	if err != nil {
		return nil, err
	}
	total, err := parseAmountHex("total_amount", base[offTotalHex:offBuyerID])
	if err != nil {
		return nil, err
	}

	buyerID := strings.TrimSpace(base[offBuyerID:offSellerID])
	sellerID := strings.TrimSpace(base[offSellerID:headerLen])
	if !taxIDRE.MatchString(sellerID) {
		return nil, &entity.FormatError{
			Field:  "seller_id",
			Reason: "expected 8-digit tax ID",
			Raw:    sellerID,
		}
	}
	if buyerID != "" && !taxIDRE.MatchString(buyerID) {
		return nil, &entity.FormatError{
			Field:  "buyer_id",
			Reason: "expected 8-digit tax ID or blank",
			Raw:    buyerID,
		}
	}

	return &ParsedInvoice{
		InvoiceNumber: key[:10],
		InvoiceDate:   invoiceDate,
		RandomCode:    key[17:21],
		SellerID:      sellerID,
		BuyerID:       buyerID,
		SalesAmount:   sales,
		TaxAmount:     total - sales,
		TotalAmount:   total,
		Items:         extractItems(itemsSource),
	}, nil
}

func parseAmountHex(field, hex string) (int64, error) {
	if !amountHexRE.MatchString(hex) {
		return 0, &entity.FormatError{
			Field:  field,
			Reason: "expected 8 hexadecimal characters",
			Raw:    hex,
		}
	}
	v, err := strconv.ParseInt(hex, 16, 64)
	if err != nil {
		return 0, &entity.FormatError{Field: field, Reason: "not a hexadecimal amount", Raw: hex}
	}
	return v, nil
}

// extractItems recovers line items from a payload's colon-separated tail.
// Payloads embed a sequence like ...:<name>:<qty>:<unitPrice>:... possibly
// preceded by metadata segments, so every plausible starting offset is tried
// and the parse yielding the most items wins.
func extractItems(payload string) []entity.InvoiceItem {
	if !strings.Contains(payload, ":") {
		return nil
	}
	var segments []string
	for _, seg := range strings.Split(payload, ":") {
		if s := strings.TrimSpace(seg); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 3 {
		return nil
	}

	parseFrom := func(start int) []entity.InvoiceItem {
		var items []entity.InvoiceItem
		i := start
		for i+2 < len(segments) {
			name := RepairMojibake(segments[i])
			qtyStr := segments[i+1]
			unitStr := segments[i+2]

			if name == "" || allAsterisks(name) || !hasNameRune(name) {
				i++
				continue
			}
			if numberRE.MatchString(qtyStr) && numberRE.MatchString(unitStr) {
				qty, errQ := decimal.NewFromString(qtyStr)
				unit, errU := decimal.NewFromString(unitStr)
				if errQ == nil && errU == nil {
					items = append(items, entity.InvoiceItem{Name: name, Quantity: qty, UnitPrice: unit})
					i += 3
					continue
				}
			}
			i++
		}
		return items
	}

	maxStart := len(segments)
	if maxStart > 12 {
		maxStart = 12
	}
	var best []entity.InvoiceItem
	for start := 0; start < maxStart; start++ {
		if cand := parseFrom(start); len(cand) > len(best) {
			best = cand
		}
	}
	return best
}

func allAsterisks(s string) bool {
	for _, r := range s {
		if r != '*' {
			return false
		}
	}
	return len(s) > 0
}

// hasNameRune rejects purely numeric or symbolic "names", which show up when
// item scanning starts at a wrong offset.
func hasNameRune(s string) bool {
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= 0x4E00 && r <= 0x9FFF) {
			return true
		}
	}
	return false
}
