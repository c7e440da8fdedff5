// Package urlkey turns source-control URLs into comparison keys so that the same
// repository can be recognized across GitHub, Azure DevOps and local clones.
package urlkey

import (
	"strings"
)

const (
	githubAPIReposPrefix = "https://api.github.com/repos/"
	githubWebPrefix      = "https://github.com/"
)

// Normalize trims trailing slashes and one trailing ".git" (case-insensitive),
// in either order, then lowercases the result. Empty input yields an empty key.
func Normalize(url string) string {
	if url == "" {
		return ""
	}

	normalized := strings.TrimRight(url, "/")
	if len(normalized) >= 4 && strings.EqualFold(normalized[len(normalized)-4:], ".git") {
		normalized = normalized[:len(normalized)-4]
	}
	normalized = strings.TrimRight(normalized, "/")

	return strings.ToLower(normalized)
}

// WebURL rewrites API and transport forms of a repository URL into the
// web-facing https form. Unknown shapes are returned untouched.
//
//	https://api.github.com/repos/org/repo  -> https://github.com/org/repo
//	git@github.com:org/repo.git            -> https://github.com/org/repo.git
//	ssh://git@github.com/org/repo.git      -> https://github.com/org/repo.git
//	git://github.com/org/repo              -> https://github.com/org/repo
func WebURL(url string) string {
	url = strings.TrimSpace(url)
	lower := strings.ToLower(url)

	switch {
	case strings.HasPrefix(lower, githubAPIReposPrefix):
		return githubWebPrefix + url[len(githubAPIReposPrefix):]

	case strings.HasPrefix(lower, "ssh://"):
		rest := url[len("ssh://"):]
		if idx := strings.Index(rest, "@"); idx >= 0 {
			rest = rest[idx+1:]
		}
		host, path, ok := strings.Cut(rest, "/")
		if !ok {
			return url
		}
		// drop an explicit port, e.g. ssh://git@host:22/org/repo
		if h, _, found := strings.Cut(host, ":"); found {
			host = h
		}
		return "https://" + host + "/" + path

	case strings.HasPrefix(lower, "git://"):
		return "https://" + url[len("git://"):]

	case strings.HasPrefix(lower, "http://"):
		return "https://" + url[len("http://"):]

	case !strings.Contains(url, "://") && strings.Contains(url, "@") && strings.Contains(url, ":"):
		// scp-like syntax: user@host:org/repo.git
		_, rest, _ := strings.Cut(url, "@")
		host, path, ok := strings.Cut(rest, ":")
		if !ok || host == "" || path == "" {
			return url
		}
		return "https://" + host + "/" + strings.TrimLeft(path, "/")
	}

	return url
}

// Key is the comparison key used for cross-system matching.
func Key(url string) string {
	return Normalize(WebURL(url))
}

// Equal reports whether two URLs refer to the same repository. An absent URL
// matches nothing, not even another absent URL.
func Equal(a, b string) bool {
	ka, kb := Key(a), Key(b)
	if ka == "" || kb == "" {
		return false
	}
	return ka == kb
}
