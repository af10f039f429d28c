package preview

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Metadata is what a page advertises about itself.
type Metadata struct {
	Title       string
	Description string
	Image       string
}

var (
	titleKeys       = []string{"og:title", "twitter:title", "<title>"}
	descriptionKeys = []string{"og:description", "twitter:description", "description"}
	imageKeys       = []string{"og:image", "og:image:secure_url", "og:image:url", "twitter:image", "twitter:image:src", "<image_src>"}
)

// ParseMetadata reads OpenGraph, Twitter card and plain HTML metadata from the
// document head. Parsing stops at </head> or <body>.
func ParseMetadata(r io.Reader) (Metadata, error) {
	found := make(map[string]string)
	set := func(key, value string) {
		value = strings.Join(strings.Fields(value), " ")
		if value == "" {
			return
		}
		if _, ok := found[key]; !ok {
			found[key] = value
		}
	}

	z := html.NewTokenizer(r)
	inTitle := false
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				break loop
			}
			return Metadata{}, z.Err()
		case html.TextToken:
			if inTitle {
				set("<title>", string(z.Text()))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				inTitle = false
			case "head":
				break loop
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				break loop
			case "title":
				inTitle = true
			case "meta":
				if hasAttr {
					attrs := attributes(z)
					key := attrs["property"]
					if key == "" {
						key = attrs["name"]
					}
					set(strings.ToLower(key), attrs["content"])
				}
			case "link":
				if hasAttr {
					attrs := attributes(z)
					if strings.EqualFold(attrs["rel"], "image_src") {
						set("<image_src>", attrs["href"])
					}
				}
			}
		}
	}

	return Metadata{
		Title:       first(found, titleKeys),
		Description: first(found, descriptionKeys),
		Image:       first(found, imageKeys),
	}, nil
}

func attributes(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		attrs[strings.ToLower(string(key))] = string(val)
		if !more {
			return attrs
		}
	}
}

func first(found map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := found[k]; ok {
			return v
		}
	}
	return ""
}
