package filetypes

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// Rule matches a file by extension or declared MIME. A MIME entry ending in
// "/*" matches every subtype.
type Rule struct {
	Extensions []string `yaml:"extensions"`
	MIMEs      []string `yaml:"mimes"`
}

type Config struct {
	Blocked   []string        `yaml:"blocked_extensions"`
	PlainText Rule            `yaml:"plain_text"`
	Accepted  map[string]Rule `yaml:"accepted"`
}

func Default() Config {
	return Config{
		Blocked: []string{
			"exe", "dll", "msi", "bat", "cmd", "com", "sh", "ps1", "apk", "dmg", "app", "jar",
			"zip", "rar", "7z", "tar", "gz", "tgz", "bz2", "xz",
			"doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods", "odp", "pages", "numbers", "key",
		},
		PlainText: Rule{
			Extensions: []string{"txt", "csv", "json"},
			MIMEs:      []string{"text/*", "application/json"},
		},
		Accepted: map[string]Rule{
			string(domain.KindPDF):  {Extensions: []string{"pdf"}, MIMEs: []string{"application/pdf", "application/x-pdf"}},
			string(domain.KindJPEG): {Extensions: []string{"jpg", "jpeg", "jpe", "jfif"}, MIMEs: []string{"image/jpeg", "image/jpg", "image/pjpeg"}},
			string(domain.KindPNG):  {Extensions: []string{"png"}, MIMEs: []string{"image/png"}},
			string(domain.KindTIFF): {Extensions: []string{"tif", "tiff"}, MIMEs: []string{"image/tiff"}},
			string(domain.KindWEBP): {Extensions: []string{"webp"}, MIMEs: []string{"image/webp"}},
			string(domain.KindHEIC): {Extensions: []string{"heic"}, MIMEs: []string{"image/heic", "image/heic-sequence"}},
			string(domain.KindHEIF): {Extensions: []string{"heif"}, MIMEs: []string{"image/heif", "image/heif-sequence"}},
		},
	}
}

// Load reads a YAML override. Sections missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read file types %s: %w", path, err)
	}
	var override Config
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Config{}, fmt.Errorf("parse file types %s: %w", path, err)
	}

	if override.Blocked != nil {
		cfg.Blocked = override.Blocked
	}
	if len(override.PlainText.Extensions) > 0 || len(override.PlainText.MIMEs) > 0 {
		cfg.PlainText = override.PlainText
	}
	if len(override.Accepted) > 0 {
		cfg.Accepted = override.Accepted
	}
	return cfg, nil
}

var acceptedKinds = map[string]domain.FileKind{
	string(domain.KindPDF):  domain.KindPDF,
	string(domain.KindJPEG): domain.KindJPEG,
	string(domain.KindPNG):  domain.KindPNG,
	string(domain.KindTIFF): domain.KindTIFF,
	string(domain.KindWEBP): domain.KindWEBP,
	string(domain.KindHEIC): domain.KindHEIC,
	string(domain.KindHEIF): domain.KindHEIF,
}

// Table is the compiled, read-only form of Config.
type Table struct {
	blocked    map[string]struct{}
	plainExt   map[string]struct{}
	plainMIME  mimeMatcher
	kindByExt  map[string]domain.FileKind
	kindByMIME mimeKinds
}

func (c Config) Compile() (*Table, error) {
	t := &Table{
		blocked:   toSet(c.Blocked),
		plainExt:  toSet(c.PlainText.Extensions),
		plainMIME: newMIMEMatcher(c.PlainText.MIMEs),
		kindByExt: make(map[string]domain.FileKind),
	}

	names := make([]string, 0, len(c.Accepted))
	for name := range c.Accepted {
		names = append(names, name)
	}
	// Map order must not leak into resolution.
	slices.Sort(names)

	for _, name := range names {
		kind, ok := acceptedKinds[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown accepted type %q", domain.ErrInvalidInput, name)
		}
		rule := c.Accepted[name]
		for _, ext := range rule.Extensions {
			ext = normalizeExt(ext)
			if ext == "" {
				continue
			}
			if _, dup := t.kindByExt[ext]; !dup {
				t.kindByExt[ext] = kind
			}
		}
		for _, mime := range rule.MIMEs {
			t.kindByMIME = append(t.kindByMIME, mimeKind{pattern: normalizeMIME(mime), kind: kind})
		}
	}
	return t, nil
}

func MustDefault() *Table {
	t, err := Default().Compile()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Blocked(ext string) bool {
	_, ok := t.blocked[normalizeExt(ext)]
	return ok
}

func (t *Table) PlainText(ext, mime string) bool {
	if _, ok := t.plainExt[normalizeExt(ext)]; ok {
		return true
	}
	return t.plainMIME.match(normalizeMIME(mime))
}

// Accepted resolves an accepted binary kind, extension first.
func (t *Table) Accepted(ext, mime string) (domain.FileKind, bool) {
	if kind, ok := t.kindByExt[normalizeExt(ext)]; ok {
		return kind, true
	}
	return t.kindByMIME.lookup(normalizeMIME(mime))
}

type mimeMatcher []string

func newMIMEMatcher(patterns []string) mimeMatcher {
	out := make(mimeMatcher, 0, len(patterns))
	for _, p := range patterns {
		if p = normalizeMIME(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m mimeMatcher) match(mime string) bool {
	if mime == "" {
		return false
	}
	for _, p := range m {
		if mimeMatches(p, mime) {
			return true
		}
	}
	return false
}

type mimeKind struct {
	pattern string
	kind    domain.FileKind
}

type mimeKinds []mimeKind

func (m mimeKinds) lookup(mime string) (domain.FileKind, bool) {
	if mime == "" {
		return "", false
	}
	for _, entry := range m {
		if mimeMatches(entry.pattern, mime) {
			return entry.kind, true
		}
	}
	return "", false
}

func mimeMatches(pattern, mime string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(mime, prefix+"/")
	}
	return pattern == mime
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = normalizeExt(v); v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
