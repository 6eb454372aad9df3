package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifier_Portuguese(t *testing.T) {
	c := NewClassifier(LexiconPortuguese)

	tests := []struct {
		name string
		text string
		want Complexity
	}{
		{"greeting", "Oi, tudo bem?", ComplexitySimple},
		{"thanks", "Obrigado pela ajuda", ComplexitySimple},
		{"short question word", "Quanto eu devo pro João?", ComplexitySimple},
		{"analytical", "Pode comparar as despesas de março e abril", ComplexityComplex},
		{"strategy", "Qual a melhor estratégia pra dividir o aluguel", ComplexityComplex},
		{"many questions", "E a luz? E a água? E o gás?", ComplexityComplex},
		{"plain request", "Divida a conta do restaurante entre nós três", ComplexityMedium},
		{"empty", "", ComplexityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifier_GreetingNeedsShortText(t *testing.T) {
	c := NewClassifier(LexiconPortuguese)

	long := "oi " + strings.Repeat("a", 250)
	require.Equal(t, ComplexityMedium, c.Classify(long))
}

func TestClassifier_GreetingWinsOverAnalytical(t *testing.T) {
	c := NewClassifier(LexiconPortuguese)
	require.Equal(t, ComplexitySimple, c.Classify("oi, pode calcular?"))
}

func TestClassifier_LongTextIsAlwaysComplex(t *testing.T) {
	for _, lex := range []Lexicon{LexiconPortuguese, LexiconEnglish, {}} {
		c := NewClassifier(lex)
		for _, filler := range []string{"a", "oi ", "hello ", "ç"} {
			text := strings.Repeat(filler, 1001/len([]rune(filler))+1)
			require.Equal(t, ComplexityComplex, c.Classify(text))
		}
	}
}

func TestClassifier_ShortGreetingAlwaysSimple(t *testing.T) {
	c := NewClassifier(LexiconPortuguese)
	for _, term := range LexiconPortuguese.Greetings {
		for _, wrap := range []string{"%s", "%s!", "ei, %s, analisar depois"} {
			text := strings.Replace(wrap, "%s", term, 1)
			require.Less(t, len([]rune(text)), 200)
			require.Equal(t, ComplexitySimple, c.Classify(text), text)
		}
	}
}

func TestClassifier_LengthCountsRunes(t *testing.T) {
	c := NewClassifier(LexiconPortuguese)
	// 150 two-byte runes: 300 bytes but still under the simple threshold
	text := "olá " + strings.Repeat("ã", 150)
	require.Equal(t, ComplexitySimple, c.Classify(text))
}

func TestClassifier_SwappableLexicon(t *testing.T) {
	custom := NewClassifier(Lexicon{
		Greetings:  []string{"  Hola "},
		Analytical: []string{"ANALIZAR"},
	})
	require.Equal(t, ComplexitySimple, custom.Classify("hola amigo"))
	require.Equal(t, ComplexityComplex, custom.Classify("quiero analizar gastos"))
	require.Equal(t, ComplexityMedium, custom.Classify("oi"))

	en := NewClassifier(LexiconFor("en-US"))
	require.Equal(t, ComplexitySimple, en.Classify("Hello there"))
	require.Equal(t, ComplexityComplex, en.Classify("Please compare these two bills"))

	require.Equal(t, LexiconPortuguese, LexiconFor("pt-BR"))
	require.Equal(t, LexiconPortuguese, LexiconFor(""))
}

func TestClassifier_NormalizesAccents(t *testing.T) {
	decomposed := "ola\u0301, tudo bem"
	require.NotEqual(t, "olá, tudo bem", decomposed)

	c := NewClassifier(Lexicon{Greetings: []string{"olá"}})
	require.Equal(t, ComplexitySimple, c.Classify(decomposed))

	// a decomposed lexicon term matches composed input
	c = NewClassifier(Lexicon{Analytical: []string{"estrate\u0301gia"}})
	require.Equal(t, ComplexityComplex, c.Classify("qual a melhor estratégia"))

	require.Equal(t, 3, MessageLength("ola\u0301"))
	require.Equal(t, 3, MessageLength("olá"))
}

func TestLexicon_With(t *testing.T) {
	lex := LexiconPortuguese.With([]string{"bom dia"}, nil)
	require.Equal(t, []string{"bom dia"}, lex.Greetings)
	require.Equal(t, LexiconPortuguese.Analytical, lex.Analytical)
	require.Equal(t, "olá", LexiconPortuguese.Greetings[0])

	require.Equal(t, LexiconEnglish, LexiconEnglish.With(nil, []string{}))
}
