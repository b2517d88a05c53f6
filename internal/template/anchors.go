package template

import (
	"fmt"
	"strings"
)

// AnchorRules marks where the generated [Rule] block goes in a conf template.
const AnchorRules = "#@RULES@#"

type AnchorOptions struct {
	TemplateURL string
	// Section is the lower-case section the anchor must sit in; "" means "rule".
	Section string
}

// InjectRules replaces the standalone rules anchor with block. Each block
// line gets the anchor's indentation and the template's newline style
// (CRLF/LF) is kept.
func InjectRules(templateText, block string, opt AnchorOptions) (string, error) {
	if templateText == "" {
		return "", tplErr("INVALID_ARGUMENT", "template 不能为空", opt.TemplateURL)
	}
	section := opt.Section
	if section == "" {
		section = "rule"
	}

	newline := detectNewline(templateText)
	normalized := strings.ReplaceAll(templateText, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	endsWithNewline := strings.HasSuffix(normalized, "\n")

	at, err := findAnchor(lines, section, opt.TemplateURL)
	if err != nil {
		return "", err
	}
	lines[at] = indentBlock(lines[at], block)

	out := strings.Join(lines, "\n")
	if !endsWithNewline {
		out = strings.TrimSuffix(out, "\n")
	}
	if newline == "\r\n" {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

func findAnchor(lines []string, want, templateURL string) (int, error) {
	at, count := -1, 0
	section := ""
	for i, line := range lines {
		trim := strings.TrimSpace(line)
		if strings.Contains(line, AnchorRules) && trim != AnchorRules {
			e := tplErr("TEMPLATE_SECTION_ERROR", "锚点必须独占一行", templateURL)
			e.AppError.Snippet = line
			e.AppError.Hint = AnchorRules
			e.AppError.Line = i + 1
			return -1, e
		}
		if sec, ok := parseSectionHeader(trim); ok {
			section = sec
			continue
		}
		if trim != AnchorRules {
			continue
		}
		count++
		at = i
		if section != want {
			e := tplErr("TEMPLATE_SECTION_ERROR", fmt.Sprintf("%s 必须位于 [%s] 段内", AnchorRules, sectionTitle(want)), templateURL)
			e.AppError.Line = i + 1
			return -1, e
		}
	}
	switch {
	case count == 0:
		return -1, tplErr("TEMPLATE_ANCHOR_MISSING", fmt.Sprintf("缺少锚点 %s", AnchorRules), templateURL)
	case count > 1:
		return -1, tplErr("TEMPLATE_ANCHOR_DUP", fmt.Sprintf("锚点 %s 重复出现", AnchorRules), templateURL)
	}
	return at, nil
}

func sectionTitle(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func indentBlock(anchorLine string, block string) string {
	if block == "" {
		return ""
	}
	indent := leadingWhitespace(anchorLine)
	blockLines := strings.Split(strings.TrimSuffix(block, "\n"), "\n")
	for i := range blockLines {
		blockLines[i] = indent + blockLines[i]
	}
	return strings.Join(blockLines, "\n")
}

func parseSectionHeader(trim string) (string, bool) {
	if len(trim) < 3 || trim[0] != '[' || trim[len(trim)-1] != ']' {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(trim[1 : len(trim)-1])), true
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func detectNewline(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
