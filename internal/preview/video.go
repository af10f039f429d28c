package preview

import (
	"regexp"

	"chathub/internal/models"
)

// Extractor synthesizes a preview for URLs it recognizes, without network I/O.
type Extractor func(rawURL string) (models.LinkPreview, bool)

type videoRule struct {
	name    string
	pattern *regexp.Regexp
}

const youTubeHost = `^(?:https?://)?(?:www\.|m\.|music\.)?youtube(?:-nocookie)?\.com/`

// youTubeRules are tried in order; the first match wins.
var youTubeRules = []videoRule{
	{name: "watch", pattern: regexp.MustCompile(youTubeHost + `watch/?\?(?:[^#]*&)?v=([A-Za-z0-9_-]+)`)},
	{name: "short-link", pattern: regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/([A-Za-z0-9_-]+)`)},
	{name: "embed", pattern: regexp.MustCompile(youTubeHost + `embed/([A-Za-z0-9_-]+)`)},
	{name: "shorts", pattern: regexp.MustCompile(youTubeHost + `shorts/([A-Za-z0-9_-]+)`)},
	{name: "live", pattern: regexp.MustCompile(youTubeHost + `live/([A-Za-z0-9_-]+)`)},
}

// VideoID returns the YouTube video id in rawURL and the rule that matched.
func VideoID(rawURL string) (id, rule string, ok bool) {
	for _, r := range youTubeRules {
		if m := r.pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], r.name, true
		}
	}
	return "", "", false
}

// YouTube is the built-in video extractor.
func YouTube(rawURL string) (models.LinkPreview, bool) {
	id, _, ok := VideoID(rawURL)
	if !ok {
		return models.LinkPreview{}, false
	}
	return models.LinkPreview{
		Title:       "YouTube video",
		Description: "Watch this video on YouTube",
		Image:       "https://img.youtube.com/vi/" + id + "/hqdefault.jpg",
		URL:         rawURL,
	}, true
}
