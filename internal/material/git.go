package material

import (
	"fmt"
	"strings"
)

// GitSource identifies the repository behind a git material URL.
type GitSource struct {
	Owner string
	Name  string
	// URL is the input URL, unchanged.
	URL string
}

// ParseGitURL parses an HTTPS (https://host/owner/repo.git) or SSH
// (git@host:owner/repo.git) URL. Nested group paths keep everything after
// the owner in Name.
func ParseGitURL(rawURL string) (GitSource, error) {
	normalized := strings.TrimSuffix(strings.TrimSpace(rawURL), ".git")

	if strings.HasPrefix(normalized, "git@") {
		_, path, ok := strings.Cut(strings.TrimPrefix(normalized, "git@"), ":")
		if !ok {
			return GitSource{}, fmt.Errorf("invalid SSH git URL: %s", rawURL)
		}
		owner, name, ok := strings.Cut(path, "/")
		if !ok || owner == "" || name == "" {
			return GitSource{}, fmt.Errorf("invalid SSH git URL path: %s", path)
		}
		return GitSource{Owner: owner, Name: name, URL: rawURL}, nil
	}

	for _, scheme := range []string{"https://", "http://", "ssh://"} {
		if !strings.HasPrefix(normalized, scheme) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(normalized, scheme), "/", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return GitSource{}, fmt.Errorf("invalid git URL: %s", rawURL)
		}
		return GitSource{Owner: parts[1], Name: parts[2], URL: rawURL}, nil
	}

	return GitSource{}, fmt.Errorf("unsupported git URL format: %s", rawURL)
}

// DisplayName is the default material definition name, "owner/name".
func (s GitSource) DisplayName() string {
	return s.Owner + "/" + s.Name
}
