package archive

import (
	"fmt"
)

// FormatError reports that an archive could not be enumerated or held no
// usable entries.
type FormatError struct {
	Name string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("archive %s: no entries", e.Name)
	}
	return fmt.Sprintf("archive %s: %v", e.Name, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DecodeError reports that a single entry's payload could not be read.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding entry %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RemoteFetchError reports that archive bytes could not be downloaded.
type RemoteFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// CrossOriginError is a RemoteFetchError where the origin refused to hand the
// archive to a foreign requester. Guidance is markdown explaining the
// workaround to the user.
type CrossOriginError struct {
	*RemoteFetchError
	Guidance string
}

func (e *CrossOriginError) Error() string {
	return e.RemoteFetchError.Error() + " (rejected by the origin's cross-origin policy)"
}

func (e *CrossOriginError) Unwrap() error { return e.RemoteFetchError }

// crossOriginGuidance is shown when a remote archive is refused by policy.
const crossOriginGuidance = `### The server refused to share this archive

The host at **%s** only serves this file to its own pages, so it cannot be
loaded by URL here.

Download the archive in your browser and load it as a local file instead:

` + "```sh" + `
curl -L -o site.zip '%s'
zipsite serve site.zip
` + "```" + `
`
