package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		elem string
		want string
	}{
		{
			name: "path joined to host",
			base: "http://api.server.com",
			elem: "/resource/{id}",
			want: "http://api.server.com/resource/{id}",
		},
		{
			name: "path and query joined to existing path",
			base: "http://api.server.com/resource/{id}",
			elem: "/sub?filter={filter}",
			want: "http://api.server.com/resource/{id}/sub?filter={filter}",
		},
		{
			name: "query only",
			base: "http://api.server.com/resource",
			elem: "?limit=10",
			want: "http://api.server.com/resource?limit=10",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, URL(tc.base, tc.elem))
		})
	}
}

func TestExpandURL(t *testing.T) {
	got, err := ExpandURL("http://x.org/users/{id}?q={q}", map[string]string{
		"id": "42",
		"q":  "a b",
	})

	require.NoError(t, err)
	assert.Equal(t, "http://x.org/users/42?q=a+b", got)
}

func TestExpandURL_MissingParam(t *testing.T) {
	_, err := ExpandURL("http://x.org/users/{id}", nil)
	assert.ErrorIs(t, err, ErrMissingURLParam)
}

func TestExpandURL_EmptyPathParam(t *testing.T) {
	_, err := ExpandURL("http://x.org/users/{id}", map[string]string{"id": ""})
	assert.ErrorIs(t, err, ErrEmptyURLParam)
}

func TestExpandURL_EmptyQueryParamAllowed(t *testing.T) {
	got, err := ExpandURL("http://x.org/users?q={q}", map[string]string{"q": ""})

	require.NoError(t, err)
	assert.Equal(t, "http://x.org/users?q=", got)
}
