package cookiejar

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpHeader     = "# HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

var fileHeader = []string{
	netscapeHeader,
	"# https://curl.haxx.se/rfc/cookie_spec.html",
	"# This is a generated file! Edit at your own risk.",
	"",
}

// FormatError is returned by Deserialize for text that is not a
// Netscape cookie file or contains a malformed record.
type FormatError struct {
	// 1-based, 0 when the header is missing
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("netscape cookie file: %s", e.Reason)
	}
	return fmt.Sprintf("netscape cookie file: line %d: %s", e.Line, e.Reason)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Serialize renders every unexpired cookie as a Netscape cookie file.
func (j *Jar) Serialize() string {
	var out strings.Builder
	for _, line := range fileHeader {
		out.WriteString(line)
		out.WriteByte('\n')
	}

	for _, c := range j.All() {
		if c.HttpOnly {
			out.WriteString(httpOnlyPrefix)
		}
		if !c.HostOnly {
			out.WriteByte('.')
		}

		var expires int64
		if c.Persistent {
			expires = c.Expires.Unix()
		}

		fields := []string{
			c.Domain,
			formatBool(!c.HostOnly),
			c.Path,
			formatBool(c.Secure),
			strconv.FormatInt(expires, 10),
			c.Name,
			c.Value,
		}
		out.WriteString(strings.Join(fields, "\t"))
		out.WriteByte('\n')
	}

	return out.String()
}

// Deserialize parses a Netscape cookie file into a new jar. expired
// cookies are kept until the first load, same as cookies saved live.
func Deserialize(text string, opts ...Option) (*Jar, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(trimmed, netscapeHeader) && !strings.HasPrefix(trimmed, httpHeader) {
		return nil, &FormatError{Reason: "missing header"}
	}

	var cookies []Cookie
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Reason: err.Error()}
		}
		c.HttpOnly = httpOnly
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, &FormatError{Line: lineNo, Reason: err.Error()}
	}

	j := New(opts...)
	j.cookies = dedupe(cookies)
	return j, nil
}

func parseLine(line string) (Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return Cookie{}, fmt.Errorf("expected 7 tab separated fields, got %d", len(fields))
	}

	includeSubdomains, err := parseBool(fields[1])
	if err != nil {
		return Cookie{}, err
	}
	secure, err := parseBool(fields[3])
	if err != nil {
		return Cookie{}, err
	}
	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Cookie{}, fmt.Errorf("invalid expiry %q", fields[4])
	}

	domain := strings.ToLower(strings.TrimPrefix(fields[0], "."))
	if domain == "" {
		return Cookie{}, fmt.Errorf("empty domain")
	}
	if fields[5] == "" {
		return Cookie{}, fmt.Errorf("empty cookie name")
	}

	c := Cookie{
		Name:     fields[5],
		Value:    fields[6],
		Domain:   domain,
		Path:     fields[2],
		HostOnly: !includeSubdomains,
		Secure:   secure,
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if expires != 0 {
		c.Persistent = true
		c.Expires = time.Unix(expires, 0)
	}
	return c, nil
}

func parseBool(field string) (bool, error) {
	switch {
	case strings.EqualFold(field, "TRUE"):
		return true, nil
	case strings.EqualFold(field, "FALSE"):
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", field)
}

// dedupe keeps the last cookie of every identity, in first-seen order.
func dedupe(cookies []Cookie) []Cookie {
	index := map[identity]int{}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if i, ok := index[c.identity()]; ok {
			out[i] = c
			continue
		}
		index[c.identity()] = len(out)
		out = append(out, c)
	}
	return out
}
