package flowsetup

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

//go:embed languages/*.yml
var languageFiles embed.FS

const (
	DefaultLanguage string = "en"
	displayKey             = "_language_display"
)

// Translator picks installer messages in the user's language.
//
// The message strings may contain template references to variables, which in
// turn may contain template references back to message strings. Only one
// round-trip of string -> variable -> string lookup is performed.
type Translator struct {
	language    string
	langStrings map[string]StringMap
	variables   StringMap
}

// NewTranslator returns a Translator without any variable lookup.
func NewTranslator() *Translator {
	return NewTranslatorVar(StringMap{})
}

// NewTranslatorVar returns a Translator with a variable lookup. It loads all
// language files compiled into the binary and starts in the language the
// system locale suggests, falling back to the default language.
func NewTranslatorVar(variables StringMap) *Translator {
	languages := make(map[string]StringMap)
	entries, _ := fs.ReadDir(languageFiles, "languages")
	for _, entry := range entries {
		content, err := languageFiles.ReadFile("languages/" + entry.Name())
		if err != nil {
			continue
		}
		langStrings := make(StringMap)
		if err := yaml.Unmarshal(content, langStrings); err != nil {
			continue
		}
		languages[strings.TrimSuffix(entry.Name(), ".yml")] = langStrings
	}
	t := Translator{
		langStrings: languages,
		variables:   variables,
	}
	err := t.SetLanguage(t.getLocale())
	if err != nil {
		err = t.SetLanguage(DefaultLanguage)
		if err != nil {
			return nil
		}
	}
	return &t
}

// Get returns the localized string for a given string key, with variables
// expanded.
func (t *Translator) Get(key string) string {
	str := t.getRaw(key, t.language)
	return t.Expand(str)
}

// GetLanguage returns the identifier (e.g. "en") for the current language.
func (t *Translator) GetLanguage() string { return t.language }

// GetLanguages returns the identifiers of all available languages. The
// default language comes first, the rest is sorted alphabetically.
func (t *Translator) GetLanguages() (languages []string) {
	hasDefault := false
	for lang := range t.langStrings {
		if lang != DefaultLanguage {
			languages = append(languages, lang)
		} else {
			hasDefault = true
		}
	}
	sort.Strings(languages)
	if hasDefault {
		languages = append([]string{DefaultLanguage}, languages...)
	}
	return languages
}

// DisplayName returns a language's own name for itself, like "Deutsch".
func (t *Translator) DisplayName(lang string) string {
	if langStrings, ok := t.langStrings[lang]; ok {
		return langStrings[displayKey]
	}
	return ""
}

// SetLanguage given a language code string (e.g.: "en"), sets the
// translator's language.
func (t *Translator) SetLanguage(language string) error {
	if _, ok := t.langStrings[language]; !ok {
		return fmt.Errorf("no language %q", language)
	}
	t.language = language
	return nil
}

// getLocale returns the system locale matched against the available
// languages, as a language code string (e.g.: "en").
func (t *Translator) getLocale() string {
	languageTags := []language.Tag{language.Raw.Make(DefaultLanguage)}
	for languageTag := range t.langStrings {
		if languageTag != DefaultLanguage && languageTag != "" {
			languageTags = append(languageTags, language.Raw.Make(languageTag))
		}
	}
	locale, _ := jibber_jabber.DetectIETF()
	match, _, _ := language.NewMatcher(languageTags).Match(language.Make(locale))
	return match.String()
}

// Expand expands template variables in the given str (if any) with the
// translator's current language's strings.
func (t *Translator) Expand(str string) string { return t.expand(str, t.language) }

// expand expands template variables in str with the translator's strings for
// the given language, falling back to the default language. Strings that
// fail to expand are returned as they are, so a missing variable never eats
// an installer message.
func (t *Translator) expand(str, language string) string {
	availableLanguage := language
	if _, ok := t.langStrings[language]; !ok {
		availableLanguage = DefaultLanguage
	}
	langStrings, ok := t.langStrings[availableLanguage]
	if !ok {
		return str
	}
	variables := make(StringMap, len(t.variables))
	for key, value := range t.variables {
		variables[key] = expandLenient(value, langStrings)
	}
	return expandLenient(str, variables)
}

// getRaw returns a localized string for a given key in a given language,
// without template expansion. If the language doesn't have the key, the
// default language is tried. If that fails as well, an empty string is
// returned.
func (t *Translator) getRaw(key, language string) string {
	if langStrings, ok := t.langStrings[language]; ok {
		if value, ok := langStrings[key]; ok {
			return value
		}
	}
	if langStrings, ok := t.langStrings[DefaultLanguage]; ok {
		if value, ok := langStrings[key]; ok {
			return value
		}
	}
	return ""
}

func expandLenient(str string, vars StringMap) string {
	expanded, err := ExpandVariables(str, vars)
	if err != nil {
		return str
	}
	return expanded
}
