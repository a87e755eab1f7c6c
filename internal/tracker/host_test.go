package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "strips www prefix",
			url:  "https://www.example.org/some/page",
			want: "example.org",
		},
		{
			name: "www on known domain",
			url:  "https://www.facebook.com/foo",
			want: "facebook.com",
		},
		{
			name: "subdomain collapses to known domain",
			url:  "https://m.facebook.com/foo",
			want: "facebook.com",
		},
		{
			name: "deep subdomain collapses",
			url:  "https://l.instagram.com/?u=x",
			want: "instagram.com",
		},
		{
			name: "unknown host kept as is",
			url:  "https://news.ycombinator.com/item?id=1",
			want: "news.ycombinator.com",
		},
		{
			name: "port dropped before matching",
			url:  "http://www.example.org:8080/x",
			want: "example.org",
		},
		{
			name: "only leading www stripped",
			url:  "https://www.www2.example.org/",
			want: "www2.example.org",
		},
		{
			name: "cyrillic vk subdomain",
			url:  "https://m.vk.com/wall",
			want: "vk.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHost(&tt.url)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, *got)
			}
		})
	}
}

func TestNormalizeHost_Nil(t *testing.T) {
	tests := []struct {
		name string
		url  *string
	}{
		{name: "nil input", url: nil},
		{name: "empty string", url: ptr("")},
		{name: "no host", url: ptr("not a url")},
		{name: "relative path", url: ptr("/just/a/path")},
		{name: "unparsable", url: ptr("http://[::1]:namedport")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, NormalizeHost(tt.url))
		})
	}
}

func TestNormalizeHost_Idempotent(t *testing.T) {
	url := "https://m.facebook.com/story.php?id=42"

	first := NormalizeHost(&url)
	rewrapped := "https://" + *first + "/"
	second := NormalizeHost(&rewrapped)

	assert.Equal(t, *first, *second)
}

func ptr(s string) *string {
	return &s
}
