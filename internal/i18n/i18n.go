// Package i18n resolves localized notification texts by dot-separated key.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Format resolves key and substitutes {name} placeholders.
	Format(key string, args map[string]string) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load loads the translations shipped with the binary.
func Load(defaultLang string) (*Manager, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: open embedded locales: %w", err)
	}
	return LoadFS(sub, defaultLang)
}

// LoadFS loads translations from every YAML file at the root of fsys.
func LoadFS(fsys fs.FS, defaultLang string) (*Manager, error) {
	catalog, err := parseFS(fsys)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = "en"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := strings.ToLower(strings.TrimSpace(lang))
	if norm == "" || m.translations[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
	}
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	for _, lang := range []string{t.lang, t.fallback} {
		if value, ok := t.translations[lang][key]; ok {
			return value
		}
	}

	return key
}

func (t translator) Format(key string, args map[string]string) string {
	text := t.T(key)
	if len(args) == 0 {
		return text
	}

	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func parseFS(fsys fs.FS) (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}

	catalog := make(map[string]map[string]string)
	var processed bool

	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || (path.Ext(name) != ".yaml" && path.Ext(name) != ".yml") {
			continue
		}
		processed = true

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", entry.Name(), err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", entry.Name(), err)
		}

		for lang, value := range raw {
			langKey := strings.ToLower(strings.TrimSpace(lang))
			section, ok := value.(map[string]any)
			if langKey == "" || !ok {
				continue
			}
			if catalog[langKey] == nil {
				catalog[langKey] = make(map[string]string)
			}
			flatten("", section, catalog[langKey])
		}
	}

	if !processed {
		return nil, fmt.Errorf("i18n: no yaml files found")
	}

	return catalog, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if key == "" {
			continue
		}

		nextKey := key
		if prefix != "" {
			nextKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			out[nextKey] = v
		case map[string]any:
			flatten(nextKey, v, out)
		}
	}
}
