package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Fetch downloads an archive and returns it as a Source. Responses larger
// than maxBytes (when positive) are rejected.
func Fetch(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (Source, error) {
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &RemoteFetchError{URL: rawURL, Err: fmt.Errorf("only http and https URLs are supported")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if fetchErr := classifyResponse(rawURL, u, resp); fetchErr != nil {
		return nil, fetchErr
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &RemoteFetchError{URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, &RemoteFetchError{URL: rawURL, Err: fmt.Errorf("archive exceeds %d bytes", maxBytes)}
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = u.Host
	}
	return FromBytes(name, data)
}

// classifyResponse maps a non-success response to a RemoteFetchError, or a
// CrossOriginError when the origin signals it refuses foreign requesters.
func classifyResponse(rawURL string, u *url.URL, resp *http.Response) error {
	corp := strings.ToLower(strings.TrimSpace(resp.Header.Get("Cross-Origin-Resource-Policy")))
	policyRejected := resp.StatusCode == http.StatusForbidden ||
		corp == "same-origin" || corp == "same-site"

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && !policyRejected {
		return nil
	}

	base := &RemoteFetchError{URL: rawURL, StatusCode: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		base.StatusCode = 0
		base.Err = fmt.Errorf("origin restricts the resource with Cross-Origin-Resource-Policy %q", corp)
	}
	if policyRejected {
		return &CrossOriginError{
			RemoteFetchError: base,
			Guidance:         fmt.Sprintf(crossOriginGuidance, u.Host, rawURL),
		}
	}
	return base
}

// RemoteSource downloads its archive the first time Entries is called.
type RemoteSource struct {
	URL      string
	Client   *http.Client
	MaxBytes int64

	src Source
}

// Remote returns a lazily fetched Source for rawURL.
func Remote(client *http.Client, rawURL string, maxBytes int64) *RemoteSource {
	return &RemoteSource{URL: rawURL, Client: client, MaxBytes: maxBytes}
}

func (r *RemoteSource) Name() string { return r.URL }

func (r *RemoteSource) Entries(ctx context.Context) ([]Entry, error) {
	if r.src == nil {
		src, err := Fetch(ctx, r.Client, r.URL, r.MaxBytes)
		if err != nil {
			return nil, err
		}
		r.src = src
	}
	return r.src.Entries(ctx)
}
