package flowsetup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnglishTranslator(t *testing.T, vars StringMap) *Translator {
	t.Helper()
	t.Setenv("LC_ALL", "en_US.UTF-8")
	t.Setenv("LANG", "en_US.UTF-8")
	tr := NewTranslatorVar(vars)
	require.NotNil(t, tr)
	require.NoError(t, tr.SetLanguage("en"))
	return tr
}

func TestTranslatorGet(t *testing.T) {
	tr := newEnglishTranslator(t, StringMap{"product": "Flowly", "version": "1.2.0"})

	assert.Equal(t, "This will install Flowly 1.2.0 on your computer.", tr.Get("welcome"))
	assert.Equal(t, "", tr.Get("no_such_key"))
}

func TestTranslatorSetLanguage(t *testing.T) {
	tr := newEnglishTranslator(t, StringMap{"product": "Flowly", "version": "1.2.0"})

	require.NoError(t, tr.SetLanguage("de"))
	assert.Equal(t, "de", tr.GetLanguage())
	assert.Equal(t, "Flowly 1.2.0 wird auf Ihrem Computer installiert.", tr.Get("welcome"))

	assert.Error(t, tr.SetLanguage("fr"))
	assert.Equal(t, "de", tr.GetLanguage(), "failed switch keeps the language")
}

func TestTranslatorLocaleDetection(t *testing.T) {
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	t.Setenv("LANG", "de_DE.UTF-8")

	tr := NewTranslator()
	require.NotNil(t, tr)
	assert.Equal(t, "de", tr.GetLanguage())
}

func TestTranslatorLanguages(t *testing.T) {
	tr := newEnglishTranslator(t, nil)

	assert.Equal(t, []string{"en", "de"}, tr.GetLanguages())
	assert.Equal(t, "English", tr.DisplayName("en"))
	assert.Equal(t, "Deutsch", tr.DisplayName("de"))
	assert.Equal(t, "", tr.DisplayName("fr"))
}

func TestTranslatorExpandLenient(t *testing.T) {
	tr := newEnglishTranslator(t, nil)

	// Unknown variables leave the string untouched instead of failing.
	assert.Equal(t, "{{.product}} setup", tr.Expand("{{.product}} setup"))
}
