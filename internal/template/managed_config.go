package template

import (
	"fmt"
	"strings"
)

const (
	managedConfigPrefix = "#!MANAGED-CONFIG"
	managedInterval     = 86400
)

// EnsureManagedConfig makes the first non-empty line
//
//	#!MANAGED-CONFIG <publicURL> interval=86400
//
// An existing line keeps its parameters and only gets its URL rewritten.
func EnsureManagedConfig(text, publicURL, templateURL string) (string, error) {
	if strings.TrimSpace(publicURL) == "" {
		return "", tplErr("INVALID_ARGUMENT", "publicURL 不能为空", templateURL)
	}
	if text == "" {
		return "", tplErr("INVALID_ARGUMENT", "template 不能为空", templateURL)
	}

	newline := detectNewline(text)
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	endsWithNewline := strings.HasSuffix(normalized, "\n")
	lines := strings.Split(normalized, "\n")

	managedLine := -1
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimLeft(line, " \t"), managedConfigPrefix) {
			continue
		}
		if managedLine != -1 {
			return "", managedConfigAmbiguous(templateURL, "模板包含多条 #!MANAGED-CONFIG")
		}
		managedLine = i
	}

	if managedLine == -1 {
		lines = append([]string{fmt.Sprintf("%s %s interval=%d", managedConfigPrefix, publicURL, managedInterval)}, lines...)
	} else {
		if managedLine != firstNonEmptyLine(lines) {
			return "", managedConfigAmbiguous(templateURL, "#!MANAGED-CONFIG 必须是第一个非空行")
		}
		rewritten, err := rewriteManagedConfigURL(lines[managedLine], publicURL, templateURL)
		if err != nil {
			return "", err
		}
		lines[managedLine] = rewritten
	}

	out := strings.Join(lines, "\n")
	if !endsWithNewline {
		out = strings.TrimSuffix(out, "\n")
	}
	if newline == "\r\n" {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

func firstNonEmptyLine(lines []string) int {
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			return i
		}
	}
	return -1
}

// rewriteManagedConfigURL swaps the URL token and leaves the rest of the
// line as written.
func rewriteManagedConfigURL(line, newURL, templateURL string) (string, error) {
	lead := leadingWhitespace(line)
	after := strings.TrimPrefix(line[len(lead):], managedConfigPrefix)

	urlStart := len(after) - len(strings.TrimLeft(after, " \t"))
	if urlStart == len(after) {
		return "", managedConfigAmbiguous(templateURL, "#!MANAGED-CONFIG 缺少 URL")
	}
	urlEnd := strings.IndexAny(after[urlStart:], " \t")
	if urlEnd == -1 {
		urlEnd = len(after)
	} else {
		urlEnd += urlStart
	}
	return lead + managedConfigPrefix + after[:urlStart] + newURL + after[urlEnd:], nil
}

func managedConfigAmbiguous(templateURL, msg string) error {
	e := tplErr("TEMPLATE_SECTION_ERROR", msg, templateURL)
	e.AppError.Hint = "managed config 必须唯一且位于第一个非空行"
	return e
}
