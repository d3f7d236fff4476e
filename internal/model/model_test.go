package model_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"restqa/internal/model"
)

func TestPost_EncodingOmitsAbsentFields(t *testing.T) {
	tests := []struct {
		name string
		post *model.Post
		want string
	}{
		{"create", model.NewPost(1, "Test Post Title", "This is test post body content"),
			`{"userId":1,"title":"Test Post Title","body":"This is test post body content"}`},
		{"full update", model.NewPost(1, "Updated Test Title", "Updated test body content").WithID(1),
			`{"id":1,"userId":1,"title":"Updated Test Title","body":"Updated test body content"}`},
		{"partial", &model.Post{Title: "Patched Title Only"}, `{"title":"Patched Title Only"}`},
		{"escaping", model.NewPost(2, `quote " and \ slash`, "line\nbreak"),
			`{"userId":2,"title":"quote \" and \\ slash","body":"line\nbreak"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.post)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if diff := cmp.Diff(tt.want, string(got)); diff != "" {
				t.Fatalf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	var p model.Post
	err := model.Decode([]byte(`{"id":101,"userId":1,"title":"t","body":"b","extra":{"x":1}}`), &p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.ID == nil || *p.ID != 101 || p.Title != "t" {
		t.Fatalf("decoded %+v", p)
	}

	if err := model.Decode(nil, &p); !errors.Is(err, model.ErrEmptyBody) {
		t.Fatalf("want ErrEmptyBody, got %v", err)
	}
	if err := model.Decode([]byte(`[`), &p); err == nil {
		t.Fatal("want error for malformed JSON")
	}
}

func TestNewCredentials(t *testing.T) {
	c := model.NewCredentials(10)
	local, domain, ok := strings.Cut(c.Email, "@")
	if !ok || domain != "example.com" || len(local) != 10 {
		t.Fatalf("email = %q", c.Email)
	}
	if len(c.Password) != 10 {
		t.Fatalf("password = %q", c.Password)
	}
	for _, r := range local + c.Password {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}
