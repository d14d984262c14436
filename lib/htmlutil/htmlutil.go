package htmlutil

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Text returns the text of the first node in the selection with
// surrounding whitespace trimmed and inner whitespace runs collapsed
// into a single space.
func Text(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	text := removeNonPrintable(GetText(sel.Get(0)))
	return strings.Join(strings.Fields(text), " ")
}

// AbsURL resolves the attribute `attr` of the first node in the selection
// against base. it returns "" when the attribute is missing or unparsable.
func AbsURL(base *url.URL, sel *goquery.Selection, attr string) string {
	value, ok := sel.First().Attr(attr)
	if !ok {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// Between returns the part of s after the first `start` and before the
// following `end`. an empty `end` means "until the end of s".
func Between(s, start, end string) (string, bool) {
	_, after, found := strings.Cut(s, start)
	if !found {
		return "", false
	}
	if end == "" {
		return after, true
	}
	before, _, found := strings.Cut(after, end)
	if !found {
		return "", false
	}
	return before, true
}

// ClassWithPrefix returns the first class name of the first node in the
// selection that starts with prefix, without the prefix.
func ClassWithPrefix(sel *goquery.Selection, prefix string) (string, bool) {
	classes, _ := sel.First().Attr("class")
	for _, class := range strings.Fields(classes) {
		if strings.HasPrefix(class, prefix) {
			return strings.TrimPrefix(class, prefix), true
		}
	}
	return "", false
}

func stripGrouping(text string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// ParseInt parses an integer printed with comma digit grouping ("1,005,037").
func ParseInt(text string) (int, error) {
	cleaned := stripGrouping(text)
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", text, err)
	}
	return value, nil
}

// ParseFloat parses a number printed with comma grouping and a dot decimal point.
func ParseFloat(text string) (float64, error) {
	cleaned := stripGrouping(text)
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", text, err)
	}
	return value, nil
}

// ParsePercentage turns "98.66%" into 9866, the value scaled by 100.
// "100%" is 10000 and "98.6%" is 9860. more than two decimals is an error.
func ParsePercentage(text string) (int, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(text), "%")
	whole, fraction, _ := strings.Cut(cleaned, ".")
	if len(fraction) > 2 || whole == "" || strings.HasPrefix(fraction, "-") || strings.HasPrefix(fraction, "+") {
		return 0, fmt.Errorf("parse percentage %q: invalid format", text)
	}
	fraction += strings.Repeat("0", 2-len(fraction))

	wholeValue, err := strconv.Atoi(whole)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", text, err)
	}
	fractionValue, err := strconv.Atoi(fraction)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", text, err)
	}
	if wholeValue < 0 {
		return wholeValue*100 - fractionValue, nil
	}
	return wholeValue*100 + fractionValue, nil
}
