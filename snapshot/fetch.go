package snapshot

import (
	"fmt"
	"io"
	"net/http"
)

// Fetch pulls one snapshot from the livetrack server. The caller's client
// sets the timeout policy.
func Fetch(client *http.Client, url string) (Snapshot, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, TransportError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, TransportError{fmt.Errorf("bad status: %v", resp.Status)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError{err}
	}

	return Decode(raw)
}
