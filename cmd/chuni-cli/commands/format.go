package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/scrapers/chunithm/core"
	"chuniscrape/lib/textutil"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func NewTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func describe(err error) string {
	var serviceErr *core.ServiceError
	var validationErr *core.ValidationError
	var parseErr *core.ParseError
	switch {
	case errors.Is(err, core.ErrMaintenance):
		return "CHUNITHM-NET is under maintenance, try again later."
	case errors.Is(err, core.ErrInvalidCredential):
		return "The stored login cookie no longer works, run `chuni-cli login` again."
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &serviceErr):
		return fmt.Sprintf("CHUNITHM-NET rejected the request: %s", serviceErr.Error())
	case errors.As(err, &parseErr):
		return fmt.Sprintf("unexpected page layout, rerun with --verbose and check the dumps: %s", parseErr.Error())
	}
	return err.Error()
}

func filterByTitle[T any](items []T, query string, title func(T) string) []T {
	if query == "" {
		return items
	}
	var out []T
	for _, it := range items {
		if textutil.MatchTitle(title(it), query) {
			out = append(out, it)
		}
	}
	return out
}

func formatScore(score int) string {
	s := fmt.Sprint(score)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatLamps(l chunithm.Lamps) string {
	parts := []string{l.Clear.DisplayName()}
	if combo := l.Combo.DisplayName(); combo != "" {
		parts = append(parts, combo)
	}
	return strings.Join(parts, " / ")
}
