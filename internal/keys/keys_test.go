package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestViewerKeyMap_KeyAssignments(t *testing.T) {
	k := DefaultViewerKeyMap()
	tests := []struct {
		name     string
		binding  key.Binding
		expected []string
	}{
		{name: "Quit uses q, esc and ctrl+c", binding: k.Quit, expected: []string{"q", "esc", "ctrl+c"}},
		{name: "Top uses g and home", binding: k.Top, expected: []string{"g", "home"}},
		{name: "Bottom uses G and end", binding: k.Bottom, expected: []string{"G", "end"}},
		{name: "LineNumbers uses n", binding: k.LineNumbers, expected: []string{"n"}},
		{name: "Reload uses r", binding: k.Reload, expected: []string{"r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.binding.Keys())
		})
	}
}

func TestViewerKeyMap_Matches(t *testing.T) {
	k := DefaultViewerKeyMap()
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")}, k.Bottom))
	require.False(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")}, k.Bottom))
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyCtrlC}, k.Quit))
	require.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyPgDown}, k.PageDown))
}

func TestViewerKeyMap_HelpIsComplete(t *testing.T) {
	k := DefaultViewerKeyMap()
	require.Equal(t, []key.Binding{k.Help, k.Quit}, k.ShortHelp())

	seen := 0
	for _, group := range k.FullHelp() {
		for _, b := range group {
			require.NotEmpty(t, b.Help().Key)
			require.NotEmpty(t, b.Help().Desc)
			seen++
		}
	}
	require.Equal(t, 11, seen, "every binding appears in the full help")
}
