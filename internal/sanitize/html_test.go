package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "script tag", input: `Hello <script>alert('xss')</script> World`, expected: `Hello  World`},
		{name: "inline event handler", input: `<div onclick="alert('xss')">Click me</div>`, expected: `Click me`},
		{name: "mixed tags", input: `<b>Bold</b> <i>Italic</i>`, expected: `Bold Italic`},
		{name: "ampersand survives", input: `Tea & Talk`, expected: `Tea & Talk`},
		{name: "apostrophe survives", input: `Dean's Lecture`, expected: `Dean's Lecture`},
		{name: "surrounding space trimmed", input: "  Room 101 ", expected: `Room 101`},
		{name: "image with onerror", input: `<img src=x onerror="alert('xss')">`, expected: ``},
		{name: "empty", input: ``, expected: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestHTMLKeepsFormattingDropsScripts(t *testing.T) {
	out := HTML(`<p>Bring <b>snacks</b></p><script>steal()</script><a href="javascript:alert(1)">x</a>`)

	require.Contains(t, out, "<b>snacks</b>")
	require.Contains(t, out, "<p>")
	require.NotContains(t, out, "script")
	require.False(t, strings.Contains(out, "javascript:"))
}

func TestIsPlainText(t *testing.T) {
	plain := []string{
		"Tea & Talk",
		"Dean's Lecture",
		"Pizza > Pasta: the <3 debate",
		"5 < 6 and 7 > 2",
		"  Room 101 ",
		"",
	}
	for _, in := range plain {
		require.True(t, IsPlainText(in), "%q should be plain text", in)
	}

	markup := []string{
		"<b>Go</b>",
		"a<b and c>d",
		"Why &lt;script&gt; tags matter",
		`<img src=x onerror="alert(1)">`,
	}
	for _, in := range markup {
		require.False(t, IsPlainText(in), "%q should be markup", in)
	}
}
