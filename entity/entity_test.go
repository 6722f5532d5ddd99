package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleNote = `{
	"type": "Note",
	"id": "0b2a7c6e-8d0c-4d59-9d4d-4c4c6a6f9e01",
	"uri": "https://remote.example/notes/0b2a7c6e-8d0c-4d59-9d4d-4c4c6a6f9e01",
	"created_at": "2024-06-01T12:00:00Z",
	"author": "https://remote.example/users/alice",
	"content": {"text/plain": {"content": "hello :blob:"}},
	"mentions": ["https://local.example/users/bob"],
	"group": "public",
	"device": {"name": "Phone", "version": "1.2"},
	"extensions": {
		"pub.versia:custom_emojis": {"emojis": [{"name": ":blob:", "url": {"image/png": {"content": "https://remote.example/blob.png", "remote": true}}}]},
		"org.example:unknown": {"nested": [1, 2, 3]}
	}
}`

func TestDecodeNote(t *testing.T) {
	e, err := Decode([]byte(sampleNote))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	note, ok := e.(*Note)
	if !ok {
		t.Fatalf("Expected *Note, got %T", e)
	}
	if note.Author != "https://remote.example/users/alice" {
		t.Errorf("Expected author, got '%s'", note.Author)
	}
	if note.Content.Text() != "hello :blob:" {
		t.Errorf("Expected plain content, got '%s'", note.Content.Text())
	}
	if len(note.Mentions) != 1 {
		t.Errorf("Expected 1 mention, got %d", len(note.Mentions))
	}
	if note.CreatedAt.IsZero() {
		t.Error("Expected created_at to be parsed")
	}

	emojis, err := note.Extensions.CustomEmojis()
	if err != nil {
		t.Fatalf("CustomEmojis failed: %v", err)
	}
	if len(emojis) != 1 || emojis[0].Shortcode() != "blob" {
		t.Errorf("Expected blob emoji, got %+v", emojis)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type": "Frobnicate", "id": "x"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"type": `},
		{"missing type", `{"id": "x"}`},
		{"missing id", `{"type": "Follow", "author": "https://a.example/users/a", "followee": "https://b.example/users/b"}`},
		{"author not a url", `{"type": "Follow", "id": "1", "author": "alice", "followee": "https://b.example/users/b"}`},
		{"wrong field type", `{"type": "Like", "id": "1", "author": "https://a.example/users/a", "liked": 42}`},
		{"note without uri", `{"type": "Note", "id": "1", "author": "https://a.example/users/a"}`},
		{"delete without target", `{"type": "Delete", "id": "1", "deleted_type": "Note"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("Expected *DecodeError, got %v", err)
			}
		})
	}
}

func TestDecodeCompoundTypes(t *testing.T) {
	tests := []struct {
		body string
		want Type
	}{
		{`{"type": "pub.versia:likes/Like", "id": "1", "author": "https://a.example/users/a", "liked": "https://b.example/notes/1"}`, TypeLike},
		{`{"type": "pub.versia:shares/Share", "id": "1", "author": "https://a.example/users/a", "shared": "https://b.example/notes/1"}`, TypeShare},
		{`{"type": "pub.versia:reactions/Reaction", "id": "1", "author": "https://a.example/users/a", "object": "https://b.example/notes/1", "content": "👍"}`, TypeReaction},
		{`{"type": "FollowAccept", "id": "1", "author": "https://a.example/users/a", "follower": "https://b.example/users/b"}`, TypeFollowAccept},
		{`{"type": "Delete", "id": "1", "deleted_type": "Note", "deleted": "https://b.example/notes/1"}`, TypeDelete},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			e, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if e.EntityType() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, e.EntityType())
			}
		})
	}
}

func TestUnknownFieldsSurviveReencode(t *testing.T) {
	e, err := Decode([]byte(sampleNote))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	out, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Re-encoded note is not JSON: %v", err)
	}
	if string(fields["device"]) != `{"name":"Phone","version":"1.2"}` {
		t.Errorf("Expected device to be preserved, got %s", fields["device"])
	}

	var ext map[string]json.RawMessage
	if err := json.Unmarshal(fields["extensions"], &ext); err != nil {
		t.Fatalf("extensions not an object: %v", err)
	}
	if string(ext["org.example:unknown"]) != `{"nested":[1,2,3]}` {
		t.Errorf("Expected unknown extension to be preserved, got %s", ext["org.example:unknown"])
	}
	if _, ok := fields["type"]; !ok {
		t.Error("Expected type discriminator in output")
	}
}

func TestEncodeStampsType(t *testing.T) {
	like := &Like{Author: "https://a.example/users/a", Liked: "https://b.example/notes/1"}
	like.ID = "1"

	out, err := Encode(like)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(out), `"type":"pub.versia:likes/Like"`) {
		t.Errorf("Expected type in output, got %s", out)
	}
}

func TestSetCustomEmojis(t *testing.T) {
	var ext Extensions
	err := ext.SetCustomEmojis([]CustomEmoji{{Name: ":wave:", URL: Remote("image/png", "https://x.example/wave.png")}})
	if err != nil {
		t.Fatalf("SetCustomEmojis failed: %v", err)
	}

	emojis, err := ext.CustomEmojis()
	if err != nil {
		t.Fatalf("CustomEmojis failed: %v", err)
	}
	if len(emojis) != 1 || emojis[0].Name != ":wave:" {
		t.Errorf("Unexpected emojis: %+v", emojis)
	}

	if err := ext.SetCustomEmojis(nil); err != nil {
		t.Fatalf("SetCustomEmojis(nil) failed: %v", err)
	}
	if _, ok := ext[ExtCustomEmojis]; ok {
		t.Error("Expected extension to be removed")
	}
}

func TestContentFormatPreferred(t *testing.T) {
	cf := ContentFormat{
		MimePlain:    {Content: "plain"},
		MimeMarkdown: {Content: "*md*"},
	}
	mime, content := cf.Preferred()
	if mime != MimeMarkdown || content != "*md*" {
		t.Errorf("Expected markdown, got %s %s", mime, content)
	}
	if cf.Text() != "plain" {
		t.Errorf("Expected plain text, got %s", cf.Text())
	}

	cf[MimeHTML] = ContentEntry{Content: "<p>html</p>"}
	if mime, _ := cf.Preferred(); mime != MimeHTML {
		t.Errorf("Expected html to win, got %s", mime)
	}
}
