package fetch

import (
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/valyala/fasttemplate"
)

var (
	// ErrEmptyURLParam reports an empty param value for a URL placeholder.
	ErrEmptyURLParam = errors.New("empty param value for a fetch URL")

	// ErrMissingURLParam reports a missing param for a URL placeholder.
	ErrMissingURLParam = errors.New("missing param value for a fetch URL")
)

const (
	noneEscape int = iota
	queryEscape
	pathEscape
)

// URL returns a url string with the provided elem joined to the existing
// path of base. It may return an empty string if an error occurs.
//
// base is usually the host part of the URL and, optionally, a sequence of
// path segments. elem may contain path segments with a query string, or the
// query string only (must include ?). Examples:
//
//	URL("http://api.server.com/resource/{id}", "/sub-resource?filter={filter}")
//	URL("http://api.server.com", "/resource/{id}?filter={filter}")
func URL(base string, elem string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}

	path, params, found := strings.Cut(elem, "?")
	u2, err := url.Parse(path)
	if err != nil {
		return ""
	}

	if u2.Path != "" {
		u = u.JoinPath(u2.Path)
	}

	if found {
		u.RawQuery = params
	}

	unescapedURL, err := url.PathUnescape(u.String())
	if err != nil {
		return ""
	}

	return unescapedURL
}

// ExpandURL substitutes the {name} placeholders of rawurl with the values of
// params, escaping path and query segments appropriately. It is a
// convenience for building Request URLs from endpoint templates.
func ExpandURL(rawurl string, params map[string]string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}

	p, err := fasttemplate.ExecuteFuncStringWithErr(u.Path, "{", "}",
		func(w io.Writer, tag string) (int, error) { return expandTag(w, tag, params, noneEscape) })
	if err != nil {
		return "", err
	}

	rawPath, err := fasttemplate.ExecuteFuncStringWithErr(u.Path, "{", "}",
		func(w io.Writer, tag string) (int, error) { return expandTag(w, tag, params, pathEscape) })
	if err != nil {
		return "", err
	}

	rawQuery, err := fasttemplate.ExecuteFuncStringWithErr(u.RawQuery, "{", "}",
		func(w io.Writer, tag string) (int, error) { return expandTag(w, tag, params, queryEscape) })
	if err != nil {
		return "", err
	}

	u.Path = p
	u.RawPath = rawPath
	u.RawQuery = rawQuery
	return u.String(), nil
}

func noopEscape(s string) string { return s }

func expandTag(w io.Writer, tag string, m map[string]string, mode int) (int, error) {
	escapeFunc := noopEscape
	switch mode {
	case queryEscape:
		escapeFunc = url.QueryEscape
	case pathEscape:
		escapeFunc = url.PathEscape
	}

	v, ok := m[tag]
	if !ok {
		return 0, ErrMissingURLParam
	}

	if v == "" && mode != queryEscape {
		return 0, ErrEmptyURLParam
	}

	return w.Write([]byte(escapeFunc(v)))
}
