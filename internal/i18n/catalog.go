// Package i18n loads the embedded message catalogs and hands out per-locale translators.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale must be present in every bundle.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle is a set of locale catalogs registered with an x/text catalog builder.
type Bundle struct {
	builder  *catalog.Builder
	messages map[language.Tag]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
}

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedLocales)
}

// LoadFromFS loads every locales/*.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	b := &Bundle{
		builder:  catalog.NewBuilder(catalog.Fallback(base)),
		messages: make(map[language.Tag]map[string]string),
	}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}
	if _, ok := b.messages[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	// The matcher prefers the first tag on ties, so the base locale goes first.
	sort.SliceStable(b.tags, func(i, j int) bool { return b.tags[i] == base && b.tags[j] != base })
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if want := strings.TrimSuffix(path.Base(p), path.Ext(p)); locale != want {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, want)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale: %w", p, err)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}
	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if err := b.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: register %q: %w", p, key, err)
		}
		messages[key] = value
	}
	b.messages[tag] = messages
	b.tags = append(b.tags, tag)
	return nil
}

// Locales lists loaded locale tags.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.tags))
	for _, tag := range b.tags {
		out = append(out, tag.String())
	}
	sort.Strings(out)
	return out
}

// Translator resolves keys for one locale.
type Translator struct {
	printer  *message.Printer
	tag      language.Tag
	known    map[string]string
	fallback map[string]string
}

// Translator returns a translator for the best match of the preferred locales,
// which may be tags or an Accept-Language header value.
func (b *Bundle) Translator(preferred ...string) Translator {
	var tags []language.Tag
	for _, p := range preferred {
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, _ := b.matcher.Match(tags...)
	tag := b.tags[idx]
	return Translator{
		printer:  message.NewPrinter(tag, message.Catalog(b.builder)),
		tag:      tag,
		known:    b.messages[tag],
		fallback: b.messages[language.MustParse(BaseLocale)],
	}
}

// Locale reports the resolved locale.
func (t Translator) Locale() string {
	return t.tag.String()
}

// T formats the message for key. Unknown keys are returned unchanged.
func (t Translator) T(key string, args ...any) string {
	if t.printer == nil {
		return key
	}
	if _, ok := t.known[key]; !ok {
		if _, ok := t.fallback[key]; !ok {
			return key
		}
	}
	return t.printer.Sprintf(key, args...)
}
