package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://upsc.gov.in/qp/GS1-2023.pdf", true},
		{"https://upsc.gov.in/qp/GS1-2023.PDF", true},
		{"https://upsc.gov.in/download.pdf?id=42&lang=en", true},
		{"https://upsc.gov.in/papers.pdf/index.html", false},
		{"https://upsc.gov.in/pdf-archive", false},
		{"https://upsc.gov.in/papers", false},
	}
	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsDocument(tc.url))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://UPSC.gov.in:443/Papers#top", "https://upsc.gov.in/Papers"},
		{"http://upsc.gov.in:80", "http://upsc.gov.in/"},
		{"https://upsc.gov.in/x?b=2&a=1", "https://upsc.gov.in/x?a=1&b=2"},
		{"https://upsc.gov.in:8443/x", "https://upsc.gov.in:8443/x"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := NormalizeURL("http://%zz")
	require.Error(t, err)
}

func TestParseRoot(t *testing.T) {
	t.Parallel()

	_, err := parseRoot("https://upsc.gov.in/")
	require.NoError(t, err)

	for _, bad := range []string{"", "upsc.gov.in/papers", "ftp://upsc.gov.in/", "http://%zz", "/relative"} {
		_, err := parseRoot(bad)
		require.ErrorIs(t, err, ErrInvalidRoot, bad)
	}
}
