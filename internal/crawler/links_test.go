package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/papers/">Papers</a>
		<a href="archive/2019.html#section">Archive</a>
		<a href="//cdn.upsc.gov.in/qp/gs1.pdf">CDN</a>
		<a href="#top">Top</a>
		<a href="mailto:help@upsc.gov.in">Mail</a>
		<a href="JavaScript:void(0)">JS</a>
		<a href="tel:+911123385271">Call</a>
		<a href="ftp://files.upsc.gov.in/x.pdf">FTP</a>
		<a href="http://[::1">Broken</a>
		<a href="">Empty</a>
		<a href="https://upsc.gov.in/papers/">Again</a>
		<a>No href</a>
	</body></html>`

	links, err := ExtractLinks([]byte(html), "https://upsc.gov.in/examinations/index.html")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://upsc.gov.in/papers/",
		"https://upsc.gov.in/examinations/archive/2019.html",
		"https://cdn.upsc.gov.in/qp/gs1.pdf",
	}, links)
}

func TestExtractLinksProtocolRelativeKeepsScheme(t *testing.T) {
	t.Parallel()

	links, err := ExtractLinks([]byte(`<a href="//example.org/a">x</a>`), "http://upsc.gov.in/")
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.org/a"}, links)
}

func TestExtractLinksBadPageURL(t *testing.T) {
	t.Parallel()

	_, err := ExtractLinks([]byte(`<a href="/x">x</a>`), "http://%zz")
	require.Error(t, err)
}
