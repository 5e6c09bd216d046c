package quotes

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// leadingNumber matches the longest decimal prefix, the way a browser's
// parseFloat reads "1.234abc" as 1.234.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// Extract returns the trimmed text of the first element matching selector.
func Extract(body []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	return strings.TrimSpace(sel.Text()), nil
}

// ParseLocaleNumber reads a price written with a decimal comma. Only the first
// comma becomes a point, so grouped values such as "1,234.56" come out as
// 1.234; that matches how the quote pages have always been read.
func ParseLocaleNumber(text string) (float64, error) {
	normalized := strings.Replace(strings.TrimSpace(text), ",", ".", 1)
	prefix := leadingNumber.FindString(normalized)
	if prefix == "" {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	value, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNotNumeric, text, err)
	}
	return value, nil
}
