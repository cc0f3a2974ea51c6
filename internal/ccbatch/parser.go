// Package ccbatch parses pasted spreadsheet rows of credit card settlements
// and generates the browser automation script that keys them into the legacy
// receivables system.
package ccbatch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Record is one settlement row ready for automation.
type Record struct {
	InvoiceNumber     string `json:"invoiceNumber"`
	CardPaymentMethod string `json:"cardPaymentMethod"`
	SettlementAmount  string `json:"settlementAmount"`
	Customer          string `json:"customer"`
}

var (
	fieldSplit     = regexp.MustCompile(`\t+|\s{2,}`)
	invoicePattern = regexp.MustCompile(`^[PR]\d+`)
	amountClean    = regexp.MustCompile(`[^\d.\-]`)
)

// ErrNoRecords is returned when the pasted text yields no usable rows.
var ErrNoRecords = errors.New("no valid data records found")

// ParseText splits pasted spreadsheet text into records. Columns are separated
// by tabs or runs of two or more spaces; a leading header row mentioning
// "invoice" is skipped.
func ParseText(input string) ([]Record, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("input text is empty")
	}

	lines := strings.Split(input, "\n")
	start := 0
	if strings.Contains(strings.ToLower(lines[0]), "invoice") {
		start = 1
	}

	var records []Record
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		parts := fieldSplit.Split(line, -1)
		if len(parts) < 4 {
			continue
		}
		records = append(records, Record{
			InvoiceNumber:     strings.TrimSpace(parts[0]),
			CardPaymentMethod: strings.TrimSpace(parts[1]),
			SettlementAmount:  strings.TrimSpace(parts[2]),
			Customer:          strings.TrimSpace(parts[3]),
		})
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// Row is one raw settlement workbook row before normalization, as extracted
// client-side from the batch spreadsheet.
type Row struct {
	Invoice    string `json:"invoice"`
	Customer   string `json:"customer"`
	CardType   string `json:"card_type"`
	CardNumber string `json:"card_number"`
	Settlement string `json:"settlement"`
}

// ProcessRows normalizes raw workbook rows into automation records. Refund
// rows (parenthesized amounts), zero amounts, and unparseable amounts are
// skipped; everything else goes through invoice, customer, and payment method
// normalization.
func ProcessRows(rows []Row) ([]Record, error) {
	var records []Record
	for i, row := range rows {
		amount, ok := NormalizeAmount(row.Settlement)
		if !ok {
			continue
		}
		records = append(records, Record{
			InvoiceNumber:     NormalizeInvoice(row.Invoice, i+1),
			CardPaymentMethod: PaymentMethod(row.CardType, row.CardNumber),
			SettlementAmount:  amount,
			Customer:          NormalizeCustomer(row.Customer),
		})
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// NormalizeInvoice uppercases an invoice reference, keeps only the first of a
// comma list, and flags anything that is not P or R followed by digits for
// manual entry. line is the 1-based source row used in the fallback text.
func NormalizeInvoice(raw string, line int) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Sprintf("Line %d TBD manually", line)
	}
	if idx := strings.Index(raw, ","); idx >= 0 {
		raw = strings.TrimSpace(raw[:idx])
	}
	raw = strings.ToUpper(raw)
	if invoicePattern.MatchString(raw) {
		return raw
	}
	return fmt.Sprintf("Line %d TBD manually", line)
}

// NormalizeCustomer flips "Last, First" names into "First Last" and collapses
// the Bill.com payment processor spelling variants.
func NormalizeCustomer(raw string) string {
	customer := strings.TrimSpace(raw)
	if idx := strings.Index(customer, ","); idx >= 0 {
		last := strings.TrimSpace(customer[:idx])
		first := strings.TrimSpace(customer[idx+1:])
		customer = first + " " + last
	}
	if strings.Contains(strings.ToUpper(customer), "BILL .COM") {
		customer = "BILL.COM"
	}
	return strings.TrimSpace(customer)
}

// PaymentMethod builds the "AMEX-1234" style reference from a card type code
// and a masked card number.
func PaymentMethod(cardType, cardNumber string) string {
	if cardType == "" || cardNumber == "" {
		return ""
	}
	var method string
	switch {
	case strings.HasPrefix(strings.ToUpper(cardType), "A"):
		method = "AMEX-"
	case strings.HasPrefix(strings.ToUpper(cardType), "V"):
		method = "VISA-"
	case strings.HasPrefix(strings.ToUpper(cardType), "M"):
		method = "MC-"
	case strings.HasPrefix(strings.ToUpper(cardType), "D"):
		method = "DISC-"
	default:
		return ""
	}

	if strings.Contains(cardNumber, "XXXX") {
		digits := strings.TrimSpace(strings.ReplaceAll(cardNumber, "XXXX", ""))
		if isDigits(digits) {
			return method + padFour(digits)
		}
		return method
	}
	if isDigits(cardNumber) {
		if len(cardNumber) > 4 {
			cardNumber = cardNumber[len(cardNumber)-4:]
		}
		return method + padFour(cardNumber)
	}
	return method
}

// NormalizeAmount strips currency formatting and renders two decimals. The
// second return is false for refunds (parenthesized amounts), zero amounts,
// and unparseable values, which callers skip.
func NormalizeAmount(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.Contains(raw, "(") && strings.Contains(raw, ")") {
		return "", false
	}
	clean := amountClean.ReplaceAllString(raw, "")
	amount, err := strconv.ParseFloat(clean, 64)
	if err != nil || amount == 0 {
		return "", false
	}
	return strconv.FormatFloat(amount, 'f', 2, 64), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func padFour(s string) string {
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
