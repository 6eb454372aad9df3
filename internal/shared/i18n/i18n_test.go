package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalizer(t *testing.T) {
	l, err := NewLocalizer("pt-BR")
	require.NoError(t, err)
	require.Equal(t, "pt-BR", l.DefaultLanguage())

	require.Equal(t,
		"Seu uso está otimizado! Continue fazendo perguntas diretas e específicas.",
		l.Default(MsgOptimized, nil))

	require.Equal(t,
		"Your usage is optimized! Keep asking direct, specific questions.",
		l.Get("en", MsgOptimized, nil))

	require.Equal(t,
		"Contexto da conversa: racha do churrasco",
		l.Default(MsgConversationContext, map[string]interface{}{"Context": "racha do churrasco"}))
}

func TestLocalizer_Fallbacks(t *testing.T) {
	l, err := NewLocalizer("en")
	require.NoError(t, err)

	// unknown language falls back to the default
	require.Equal(t, l.Get("en", MsgHeavyUsage, nil), l.Get("fr", MsgHeavyUsage, nil))

	// unknown message id comes back verbatim
	require.Equal(t, "no_such_message", l.Default("no_such_message", nil))
}

func TestNewLocalizer_UnsupportedDefault(t *testing.T) {
	_, err := NewLocalizer("de")
	require.Error(t, err)
}
