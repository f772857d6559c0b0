package replconfig

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed default_locales.yaml
var defaultLocalesYAML []byte

// DefaultLocales returns the built-in locale table clean falls back to when
// no REPL preferences file overrides it.
func DefaultLocales() LocaleConfig {
	var lc LocaleConfig
	if err := yaml.Unmarshal(defaultLocalesYAML, &lc); err != nil {
		panic(fmt.Sprintf("replconfig: embedded default locale table is invalid: %v", err))
	}
	return lc
}

// Merge returns a LocaleConfig with entries from override layered on top of
// base: override's Default wins when set, and override's masks are added to
// (or replace same-named entries in) base's masks.
func Merge(base, override LocaleConfig) LocaleConfig {
	merged := LocaleConfig{
		Default: base.Default,
		Masks:   make(map[string]LocaleEntry, len(base.Masks)+len(override.Masks)),
	}
	for k, v := range base.Masks {
		merged.Masks[k] = v
	}
	for k, v := range override.Masks {
		merged.Masks[k] = v
	}
	if override.Default != "" {
		merged.Default = override.Default
	}
	return merged
}

// MaskFor resolves the language mask clean should write for an image
// flagged Korean or non-USG-Chinese, falling back to the named Default
// entry (or, failing that, to zero — CleanWithMasks treats a zero mask the
// same as any other, it simply won't match a real firmware's expectations)
// when neither flag names a table entry directly.
func (c LocaleConfig) MaskFor(isKorean, isChineseNonUSG bool) uint16 {
	if isKorean {
		if e, ok := c.Masks["korean"]; ok {
			return e.LanguageMask
		}
	}
	if isChineseNonUSG {
		if e, ok := c.Masks["chinese"]; ok {
			return e.LanguageMask
		}
	}
	if c.Default != "" {
		if e, ok := c.Masks[c.Default]; ok {
			return e.LanguageMask
		}
	}
	return 0
}
