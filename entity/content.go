package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentFormat maps a MIME type to one representation of the same content.
type ContentFormat map[string]ContentEntry

type ContentEntry struct {
	Content     string `json:"content"`
	Remote      bool   `json:"remote,omitempty"`
	Description string `json:"description,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`
}

const (
	MimeHTML     = "text/html"
	MimeMarkdown = "text/markdown"
	MimePlain    = "text/plain"
)

// Plain builds a text/plain content format.
func Plain(text string) ContentFormat {
	return ContentFormat{MimePlain: {Content: text}}
}

// HTML builds a content format carrying html plus its plain text source.
func HTML(html, plain string) ContentFormat {
	cf := ContentFormat{MimeHTML: {Content: html}}
	if plain != "" {
		cf[MimePlain] = ContentEntry{Content: plain}
	}
	return cf
}

// Remote builds a content format pointing at a remote resource.
func Remote(mime, url string) ContentFormat {
	return ContentFormat{mime: {Content: url, Remote: true}}
}

// Preferred returns the richest textual representation: html, then markdown,
// then plain text. The returned mime type is empty when none is present.
func (cf ContentFormat) Preferred() (mime string, content string) {
	for _, m := range []string{MimeHTML, MimeMarkdown, MimePlain} {
		if e, ok := cf[m]; ok {
			return m, e.Content
		}
	}
	return "", ""
}

// Text returns the plain representation when present, otherwise the
// preferred one. Used by moderation filters.
func (cf ContentFormat) Text() string {
	if e, ok := cf[MimePlain]; ok {
		return e.Content
	}
	_, content := cf.Preferred()
	return content
}

// First returns any remote entry, preferring image types, for avatars,
// headers and attachments.
func (cf ContentFormat) First() (mime string, entry ContentEntry, ok bool) {
	for m, e := range cf {
		if strings.HasPrefix(m, "image/") {
			return m, e, true
		}
	}
	for m, e := range cf {
		return m, e, true
	}
	return "", ContentEntry{}, false
}

// Extensions holds namespaced extension payloads verbatim.
type Extensions map[string]json.RawMessage

const ExtCustomEmojis = "pub.versia:custom_emojis"

type CustomEmoji struct {
	Name string        `json:"name" validate:"required"`
	URL  ContentFormat `json:"url" validate:"required"`
}

// Shortcode strips the surrounding colons from the emoji name.
func (e CustomEmoji) Shortcode() string {
	return strings.Trim(e.Name, ":")
}

type customEmojis struct {
	Emojis []CustomEmoji `json:"emojis"`
}

// CustomEmojis decodes the pub.versia:custom_emojis extension.
func (x Extensions) CustomEmojis() ([]CustomEmoji, error) {
	raw, ok := x[ExtCustomEmojis]
	if !ok {
		return nil, nil
	}
	var ext customEmojis
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("invalid %s extension: %w", ExtCustomEmojis, err)
	}
	return ext.Emojis, nil
}

// SetCustomEmojis replaces the pub.versia:custom_emojis extension.
func (x *Extensions) SetCustomEmojis(emojis []CustomEmoji) error {
	if len(emojis) == 0 {
		delete(*x, ExtCustomEmojis)
		return nil
	}
	raw, err := json.Marshal(customEmojis{Emojis: emojis})
	if err != nil {
		return err
	}
	if *x == nil {
		*x = Extensions{}
	}
	(*x)[ExtCustomEmojis] = raw
	return nil
}
