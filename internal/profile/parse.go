package profile

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// Document is a parsed rule-source document: rule groups plus the policy
// bindings of its rules section.
type Document struct {
	URL      string
	Groups   []Group
	Bindings []Binding
}

// Group is one "[Name]" section. Lines holds inline rule text in document
// order; URLs holds the remote lists to append after it.
type Group struct {
	Name  string
	Lines []string
	URLs  []string
}

// Binding maps a group name or an inline clause to a policy:
//
//	Proxy: PROXY
//	GEOIP,CN: DIRECT,no-resolve
//	MATCH: PROXY
type Binding struct {
	Key     string
	Policy  string
	Options []string
	Line    int
}

// Inline reports whether the key is a rule clause instead of a group name.
func (b Binding) Inline() bool { return strings.Contains(b.Key, ",") }

func (b Binding) IsMatch() bool { return strings.EqualFold(b.Key, "MATCH") }

func (b Binding) HasOption(opt string) bool {
	for _, o := range b.Options {
		if strings.EqualFold(o, opt) {
			return true
		}
	}
	return false
}

// Group returns the group named name, if any.
func (d *Document) Group(name string) (Group, bool) {
	for _, g := range d.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// URLs returns every list URL of every group, in document order.
func (d *Document) URLs() []string {
	var out []string
	for _, g := range d.Groups {
		out = append(out, g.URLs...)
	}
	return out
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

const stage = "parse_profile"

// ParseDocument parses a rule-source document. Lines before the first
// section header are ignored. A section whose name contains "rules" holds
// bindings; every other section is a rule group, and a repeated group
// name is merged into its first occurrence.
func ParseDocument(sourceURL, content string) (*Document, error) {
	doc := &Document{URL: sourceURL}
	index := make(map[string]int)
	current := -1
	inRules := false

	parseErr := func(code, msg string, lineNo int, line string) *ParseError {
		return &ParseError{AppError: model.AppError{
			Code:    code,
			Message: msg,
			Stage:   stage,
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: truncateSnippet(line, 200),
		}}
	}

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}

		if name, ok := sectionName(line); ok {
			if name == "" {
				return nil, parseErr("PROFILE_PARSE_ERROR", "分组名不能为空", lineNo, line)
			}
			if strings.Contains(strings.ToLower(name), "rules") {
				inRules = true
				current = -1
				continue
			}
			if err := validateGroupName(name); err != nil {
				pe := parseErr("PROFILE_VALIDATE_ERROR", fmt.Sprintf("分组名不合法：%s", name), lineNo, line)
				pe.Cause = err
				return nil, pe
			}
			inRules = false
			i, ok := index[name]
			if !ok {
				i = len(doc.Groups)
				index[name] = i
				doc.Groups = append(doc.Groups, Group{Name: name})
			}
			current = i
			continue
		}

		switch {
		case inRules:
			if isComment(line) {
				continue
			}
			b, ok := parseBinding(line)
			if !ok {
				pe := parseErr("PROFILE_PARSE_ERROR", "规则绑定格式不合法", lineNo, line)
				pe.AppError.Hint = "expected: <GROUP|CLAUSE>: <POLICY>[,option...]"
				return nil, pe
			}
			b.Line = lineNo
			doc.Bindings = append(doc.Bindings, b)
		case current >= 0:
			g := &doc.Groups[current]
			if isListURL(line) {
				g.URLs = append(g.URLs, line)
				continue
			}
			g.Lines = append(g.Lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "PROFILE_PARSE_ERROR",
				Message: "读取规则源文档失败",
				Stage:   stage,
				URL:     sourceURL,
				Line:    lineNo + 1,
			},
			Cause: err,
		}
	}

	if len(doc.Groups) == 0 {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "PROFILE_VALIDATE_ERROR",
				Message: "规则源文档中没有任何分组",
				Stage:   stage,
				URL:     sourceURL,
				Hint:    "expected: [GroupName] followed by rule lines or list URLs",
			},
		}
	}
	return doc, nil
}

func sectionName(line string) (string, bool) {
	if len(line) < 2 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(line[1 : len(line)-1]), true
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "//")
}

// isListURL matches remote lists and file:// lists for offline builds.
func isListURL(line string) bool {
	if strings.HasPrefix(line, "file://") {
		u, err := url.Parse(line)
		return err == nil && u.Path != ""
	}
	if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
		return false
	}
	u, err := url.Parse(line)
	return err == nil && u.Host != ""
}

// parseBinding splits "key: policy[,opt...]". The first ": " wins so keys
// such as "IP-CIDR6,2001:db8::/32" keep their colons; without one the
// last ':' is used.
func parseBinding(line string) (Binding, bool) {
	key, value, ok := strings.Cut(line, ": ")
	if !ok {
		i := strings.LastIndexByte(line, ':')
		if i < 0 {
			return Binding{}, false
		}
		key, value = line[:i], line[i+1:]
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return Binding{}, false
	}

	parts := strings.Split(value, ",")
	b := Binding{Key: key, Policy: strings.TrimSpace(parts[0])}
	if b.Policy == "" {
		return Binding{}, false
	}
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			b.Options = append(b.Options, p)
		}
	}
	return b, true
}

// Group names become output file names.
func validateGroupName(name string) error {
	if strings.ContainsAny(name, "/\\\x00\r\n") {
		return errors.New("group name must not contain path separators or control chars")
	}
	if name == "." || name == ".." {
		return errors.New("group name must not be a relative path element")
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
