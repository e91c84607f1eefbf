package term

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"yes", "y\n", true},
		{"yes full", "yes\n", true},
		{"да", "да\n", true},
		{"no", "n\n", false},
		{"empty answer is refusal", "\n", false},
		{"garbage is refusal", "maybe\n", false},
		{"eof is refusal", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminalWith(strings.NewReader(tt.answer), &out)
			ok, err := term.Confirm("Удалить?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWith(strings.NewReader("  значение  \n"), &out)
	line, err := term.ReadLine("Введите")
	require.NoError(t, err)
	assert.Equal(t, "значение", line)
}

func TestReadSecretFallsBackWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWith(strings.NewReader("secret-token\n"), &out)
	secret, err := term.ReadSecret("Токен")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", secret)
}
