package conn

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/rtdb-go/pkg/auth"
)

// hostResolution is the canonical host plus the scheme/TLS posture to dial
// it with.
type hostResolution struct {
	Host   string
	Scheme string // "ws" or "wss"
	UseTLS bool
}

// resolveHostResponse is the REST probe's JSON body: {"h":"<canonical-host>"}.
type resolveHostResponse struct {
	H string `json:"h"`
}

// resolveHost implements spec §6's pre-connect host resolution: a REST GET
// against the namespace's default host. Every call issues a fresh request;
// the resolved host is not cached between connects. The emulator
// environment variable bypasses this entirely.
func resolveHost(client httpDoer, namespace string) (hostResolution, error) {
	if host, ok := auth.EmulatorHost(); ok {
		return hostResolution{Host: host, Scheme: "ws", UseTLS: false}, nil
	}

	defaultHost := namespace + ".firebaseio.com"
	url := fmt.Sprintf("https://%s/.ws?ns=%s", defaultHost, namespace)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return hostResolution{}, fmt.Errorf("conn: building host-resolution request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return hostResolution{}, fmt.Errorf("conn: host resolution request: %w", err)
	}
	defer resp.Body.Close()

	var body resolveHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.H == "" {
		// Resolution is advisory: fall back to the default host if the
		// probe fails or returns nothing usable.
		return hostResolution{Host: defaultHost, Scheme: "wss", UseTLS: true}, nil
	}
	return hostResolution{Host: body.H, Scheme: "wss", UseTLS: true}, nil
}

// httpDoer is the minimal interface resolveHost needs from *http.Client,
// so tests can substitute a fake transport without a real network call.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultHTTPClient is used for host resolution; a short timeout keeps a
// slow or unreachable probe from blocking the connect path indefinitely.
var defaultHTTPClient httpDoer = &http.Client{Timeout: 10 * time.Second}
