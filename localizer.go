package ionmetric

import (
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when no locale is configured.
var DefaultLocale = language.AmericanEnglish

// Localizer resolves message keys into human readable text.
type Localizer interface {
	Localize(locale language.Tag, key string, args ...any) string
}

// CatalogLocalizer resolves keys through an x/text message catalog. Keys with
// no entry are formatted as-is.
type CatalogLocalizer struct {
	cat catalog.Catalog
}

// NewCatalogLocalizer returns a localizer over cat, or over the process
// default catalog when cat is nil.
func NewCatalogLocalizer(cat catalog.Catalog) *CatalogLocalizer {
	if cat == nil {
		cat = message.DefaultCatalog
	}
	return &CatalogLocalizer{cat: cat}
}

func (l *CatalogLocalizer) Localize(locale language.Tag, key string, args ...any) string {
	return message.NewPrinter(locale, message.Catalog(l.cat)).Sprintf(key, args...)
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// LoadCatalog builds a catalog from the YAML files in fsys matching pattern.
// Each file names its locale and a flat key/message map:
//
//	locale: en-US
//	messages:
//	  payment.insufficient_funds: Insufficient funds
func LoadCatalog(fsys fs.FS, pattern string, fallback language.Tag) (*catalog.Builder, error) {
	paths, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob message catalogs: %w", err)
	}

	b := catalog.NewBuilder(catalog.Fallback(fallback))
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", path, file.Locale, err)
		}
		for key, msg := range file.Messages {
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("catalog %s: blank message key", path)
			}
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("catalog %s: key %q: %w", path, key, err)
			}
		}
	}
	return b, nil
}
