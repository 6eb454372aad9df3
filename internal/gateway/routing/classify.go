package routing

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Complexity is the coarse difficulty class of a message.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

const (
	simpleMaxLength    = 200
	complexMinLength   = 1000
	complexMinQuestion = 2
)

// Lexicon holds the locale-specific trigger terms of the classifier.
// Terms are matched as case-insensitive substrings after NFC normalization,
// so composed and decomposed accents compare equal.
type Lexicon struct {
	Greetings  []string
	Analytical []string
}

// With returns a copy of l whose lists are replaced by the non-empty
// arguments.
func (l Lexicon) With(greetings, analytical []string) Lexicon {
	if len(greetings) > 0 {
		l.Greetings = greetings
	}
	if len(analytical) > 0 {
		l.Analytical = analytical
	}
	return l
}

// LexiconPortuguese is the built-in pt-BR lexicon.
var LexiconPortuguese = Lexicon{
	Greetings: []string{
		"olá", "oi", "obrigado", "tchau", "sim", "não",
		"quanto", "quando", "onde", "como está",
	},
	Analytical: []string{
		"analisar", "calcular", "explicar detalhadamente", "comparar",
		"estratégia", "implementar", "desenvolver", "planejar",
		"otimizar", "resolver problema", "arquitetura",
	},
}

// LexiconEnglish is the built-in en lexicon.
var LexiconEnglish = Lexicon{
	Greetings: []string{
		"hello", "hey", "thanks", "thank you", "bye", "yes",
		"how much", "when", "where", "how are you",
	},
	Analytical: []string{
		"analyze", "analyse", "calculate", "explain in detail", "compare",
		"strategy", "implement", "develop", "plan",
		"optimize", "solve problem", "architecture",
	},
}

// LexiconFor returns the built-in lexicon for a locale, defaulting to pt-BR.
func LexiconFor(locale string) Lexicon {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return LexiconEnglish
	}
	return LexiconPortuguese
}

// Classifier maps message text to a Complexity.
type Classifier struct {
	greetings  []string
	analytical []string
}

// NewClassifier builds a classifier over the given lexicon.
func NewClassifier(lex Lexicon) *Classifier {
	return &Classifier{
		greetings:  normalize(lex.Greetings),
		analytical: normalize(lex.Analytical),
	}
}

// Classify applies, in order: greeting and short → simple; analytical term,
// very long text or many questions → complex; anything else → medium.
func (c *Classifier) Classify(text string) Complexity {
	text = norm.NFC.String(text)
	lower := strings.ToLower(text)
	length := utf8.RuneCountInString(text)

	if length < simpleMaxLength && containsAny(lower, c.greetings) {
		return ComplexitySimple
	}

	if containsAny(lower, c.analytical) ||
		length > complexMinLength ||
		strings.Count(text, "?") > complexMinQuestion {
		return ComplexityComplex
	}

	return ComplexityMedium
}

// MessageLength is the length of text in code points of its NFC form.
func MessageLength(text string) int {
	return utf8.RuneCountInString(norm.NFC.String(text))
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func normalize(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(norm.NFC.String(strings.TrimSpace(term)))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}
