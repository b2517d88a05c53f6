package audit

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// FileSink appends one tab-separated line per record:
//
//	<group>\t<family>\t<reason>\t<entry>[\t<covered_by>]
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	Path string
}

// DefaultFilePath is the audit file under the XDG state directory.
func DefaultFilePath() (string, error) {
	return xdg.StateFile(filepath.Join("domainrouter", "removed.txt"))
}

func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		p, err := DefaultFilePath()
		if err != nil {
			return nil, sinkError("AUDIT_OPEN_ERROR", "无法确定审计文件路径", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, sinkError("AUDIT_OPEN_ERROR", "创建审计目录失败", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, sinkError("AUDIT_OPEN_ERROR", "打开审计文件失败", err)
	}
	return &FileSink{f: f, Path: path}, nil
}

func (s *FileSink) Append(_ context.Context, group string, records []model.Removal) error {
	if len(records) == 0 {
		return nil
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString(FormatRecord(group, r))
		b.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.WriteString(b.String()); err != nil {
		return sinkError("AUDIT_WRITE_ERROR", "写入审计文件失败", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil {
		return sinkError("AUDIT_WRITE_ERROR", "关闭审计文件失败", err)
	}
	return nil
}

// FormatRecord renders one audit line without the trailing newline. Tabs
// and newlines inside fields are replaced by spaces.
func FormatRecord(group string, r model.Removal) string {
	fields := []string{group, string(r.Family), string(r.Reason), r.Entry}
	if r.CoveredBy != "" {
		fields = append(fields, r.CoveredBy)
	}
	for i, f := range fields {
		fields[i] = strings.Map(func(c rune) rune {
			if c == '\t' || c == '\n' || c == '\r' {
				return ' '
			}
			return c
		}, f)
	}
	return strings.Join(fields, "\t")
}

// ParseRecord is the inverse of FormatRecord.
func ParseRecord(line string) (group string, r model.Removal, ok bool) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != 4 && len(fields) != 5 {
		return "", model.Removal{}, false
	}
	r = model.Removal{
		Family: model.Family(fields[1]),
		Reason: model.RemovalReason(fields[2]),
		Entry:  fields[3],
	}
	if len(fields) == 5 {
		r.CoveredBy = fields[4]
	}
	return fields[0], r, true
}

// ReadFile loads every record of an audit file, grouped by group name.
func ReadFile(path string) (map[string][]model.Removal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string][]model.Removal)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if g, r, ok := ParseRecord(sc.Text()); ok {
			out[g] = append(out[g], r)
		}
	}
	return out, sc.Err()
}
