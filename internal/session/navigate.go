package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ziadkadry99/zipsite/internal/blob"
	"github.com/ziadkadry99/zipsite/internal/dom"
	"github.com/ziadkadry99/zipsite/internal/intercept"
	"github.com/ziadkadry99/zipsite/internal/nav"
	"github.com/ziadkadry99/zipsite/internal/vpath"
)

// ErrUnresolved is returned by Fetch for references that name no archived
// resource.
var ErrUnresolved = errors.New("reference does not resolve to an archived resource")

// Follow clicks an anchor with href placed in the current document and
// reports the identifier navigation lands on. The shared path context moves
// to the target when the click is claimed. ok is false for links the
// coordinator leaves to the browser: external, fragment-only or non-markup.
func (s *Session) Follow(href string) (target string, ok bool) {
	if s.Table() == nil {
		return "", false
	}
	doc := dom.NewDocument()
	layer := s.Open(doc, s.paths.Path(), intercept.WithNavigator(nav.NavigatorFunc(func(t string) {
		target = t
	})))
	defer layer.Close()

	a := doc.Root().Append(dom.NewElement("a", nil))
	layer.SetProperty(a, "href", href)
	layer.Flush()
	if !layer.Click(&dom.ClickEvent{Target: a}) {
		return "", false
	}
	return target, true
}

// Fetch reads ref as a fetch issued by the current document would: through
// the interception layer and then from the session's identifiers.
func (s *Session) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if s.Table() == nil {
		return nil, "", fmt.Errorf("fetch %s: session is %s", ref, s.State())
	}
	layer := s.Open(nil, s.paths.Path())
	defer layer.Close()

	p := layer.Wrap(intercept.Primitives{Fetch: s.fetchID})
	resp, err := p.Fetch(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (s *Session) fetchID(ctx context.Context, ref string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, _ := vpath.SplitSuffix(ref)
	if !vpath.IsContentID(id) {
		return nil, fmt.Errorf("fetch %s: %w", ref, ErrUnresolved)
	}
	data, mimeType, err := s.scope.Get(blob.ID(id))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": {mimeType}},
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
	}, nil
}
