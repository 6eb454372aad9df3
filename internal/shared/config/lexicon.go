package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LexiconTerms is the content of a lexicon override file. An empty list
// means the built-in terms stay in place.
type LexiconTerms struct {
	Greetings  []string `mapstructure:"greetings"`
	Analytical []string `mapstructure:"analytical"`
}

// LoadLexicon reads a YAML lexicon file with "greetings" and "analytical"
// lists. An empty path returns no overrides.
func LoadLexicon(path string) (LexiconTerms, error) {
	var terms LexiconTerms
	if path == "" {
		return terms, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return terms, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	if err := v.Unmarshal(&terms); err != nil {
		return terms, fmt.Errorf("failed to parse lexicon file: %w", err)
	}
	return terms, nil
}
