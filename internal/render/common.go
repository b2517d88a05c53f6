package render

import (
	"fmt"
	"strings"
	"time"
)

// yamlSQ renders a YAML single-quoted scalar.
func yamlSQ(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// updatedLabel formats t as "2006-01-02 15:04:05 (UTC+8)".
func updatedLabel(t time.Time) string {
	_, off := t.Zone()
	zone := "UTC"
	if off != 0 {
		sign := "+"
		if off < 0 {
			sign = "-"
			off = -off
		}
		h, m := off/3600, off%3600/60
		if m == 0 {
			zone = fmt.Sprintf("UTC%s%d", sign, h)
		} else {
			zone = fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
		}
	}
	return t.Format("2006-01-02 15:04:05") + " (" + zone + ")"
}

// policyOK rejects policy names that cannot appear inside a comma-separated
// rule line.
func policyOK(name string) error {
	if name == "" || strings.ContainsAny(name, "\r\n\x00,=") {
		e := renderErr("PROFILE_VALIDATE_ERROR", "策略名为空或含有不支持的字符（, 或 = 或控制字符）", name)
		e.AppError.Hint = "rename the policy in the rules section"
		return e
	}
	return nil
}
