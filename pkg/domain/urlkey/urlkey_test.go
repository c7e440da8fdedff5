package urlkey_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "https://github.com/org/repo", "https://github.com/org/repo"},
		{"git suffix", "https://github.com/org/repo.git", "https://github.com/org/repo"},
		{"upper git suffix", "https://github.com/org/repo.GIT", "https://github.com/org/repo"},
		{"trailing slash", "https://github.com/org/repo/", "https://github.com/org/repo"},
		{"mixed case", "https://GitHub.com/Org/Repo", "https://github.com/org/repo"},
		{"git then slash", "https://github.com/org/repo.git/", "https://github.com/org/repo"},
		{"git then slashes", "https://github.com/org/repo.GIT//", "https://github.com/org/repo"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, urlkey.Normalize(tc.input)).Equal(tc.want)
		})
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	gt.V(t, urlkey.Key("https://github.com/org/repo.git/")).
		Equal(urlkey.Key("https://github.com/org/repo"))
}

func TestWebURL(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"api form", "https://api.github.com/repos/org/repo", "https://github.com/org/repo"},
		{"api form upper", "HTTPS://API.GITHUB.COM/repos/org/repo", "https://github.com/org/repo"},
		{"scp ssh", "git@github.com:org/repo.git", "https://github.com/org/repo.git"},
		{"ssh scheme", "ssh://git@github.com/org/repo.git", "https://github.com/org/repo.git"},
		{"ssh scheme with port", "ssh://git@github.com:22/org/repo.git", "https://github.com/org/repo.git"},
		{"git scheme", "git://github.com/org/repo", "https://github.com/org/repo"},
		{"http", "http://github.com/org/repo", "https://github.com/org/repo"},
		{"azure repos untouched", "https://dev.azure.com/acme/proj/_git/repo", "https://dev.azure.com/acme/proj/_git/repo"},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, urlkey.WebURL(tc.input)).Equal(tc.want)
		})
	}
}

func TestEqual(t *testing.T) {
	t.Run("api and web forms match", func(t *testing.T) {
		gt.True(t, urlkey.Equal("https://api.github.com/repos/org/repo", "https://github.com/org/repo"))
	})

	t.Run("ssh clone matches web url", func(t *testing.T) {
		gt.True(t, urlkey.Equal("git@github.com:Org/Repo.git", "https://github.com/org/repo"))
	})

	t.Run("different repositories", func(t *testing.T) {
		gt.False(t, urlkey.Equal("https://github.com/org/repo", "https://github.com/org/other"))
	})

	t.Run("absent urls never match", func(t *testing.T) {
		gt.False(t, urlkey.Equal("", ""))
		gt.False(t, urlkey.Equal("", "https://github.com/org/repo"))
	})
}
