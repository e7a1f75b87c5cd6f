package conn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/firebase/rtdb-go/pkg/model"
)

// envelope is the outermost wire wrapper for every frame: "d" (data) or
// "c" (control).
type envelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

const (
	frameData    = "d"
	frameControl = "c"
)

// request is a data-frame request body: {"r":req-id,"a":action,"b":body}.
type request struct {
	R uint64      `json:"r"`
	A string      `json:"a"`
	B interface{} `json:"b"`
}

// response is a data-frame response body: {"r":req-id,"b":{"s":status,"d":data}}.
type response struct {
	R uint64       `json:"r"`
	B responseBody `json:"b"`
}

type responseBody struct {
	S string      `json:"s"`
	D interface{} `json:"d"`
}

// Response status strings the server sends back.
const (
	StatusOK          = "ok"
	StatusDataStale   = "datastale"
	StatusPermDenied  = "permission_denied"
	StatusInvalidData = "invalid_data"
)

// push is a server-initiated data frame carrying no request id: value
// updates, merges, range merges, and auth revocation notices.
type push struct {
	A string   `json:"a"`
	B pushBody `json:"b"`
}

type pushBody struct {
	P string      `json:"p"`
	D interface{} `json:"d"`
	T uint64      `json:"t"`
	S string      `json:"s"` // rm: range start key
	E string      `json:"e"` // rm: range end key
	M interface{} `json:"m"` // rm: range merge value
}

// Push action strings.
const (
	PushData       = "d"  // full value at path
	PushMerge      = "m"  // child merge at path
	PushRangeMerge = "rm" // range merge
	PushAuthRevoke = "ac" // auth token revoked/changed
	PushAuthPerm   = "ap" // permission change notice
	PushSecDebug   = "sd" // security debug message
)

// control is a control-frame payload: handshake, reset, redirect,
// shutdown, or ping.
type control struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

// Control payload type strings.
const (
	ControlHandshake = "h"
	ControlReset     = "n"
	ControlRedirect  = "r"
	ControlShutdown  = "s"
	ControlPing      = "o"
)

// handshakeData is the control payload the server sends immediately after
// the WebSocket opens.
type handshakeData struct {
	Host    string `json:"h"`
	Session string `json:"s"`
}

// resetData is the control payload accompanying a "n" reset: reconnect to
// the named host.
type resetData struct {
	Host string `json:"h"`
}

// Request actions used by the core operations (spec §6).
const (
	ActionAuth               = "auth"
	ActionUnauth             = "unauth"
	ActionListen             = "q"
	ActionUnlisten           = "n"
	ActionPut                = "p"
	ActionMerge              = "m"
	ActionOnDisconnectPut    = "o"
	ActionOnDisconnectMerge  = "om"
	ActionOnDisconnectCancel = "oc"
	ActionStats              = "s"
	ActionGet                = "g"
)

// listenBody is the request body for "q" (listen) / "n" (unlisten).
type listenBody struct {
	P string                 `json:"p"`
	Q map[string]interface{} `json:"q,omitempty"`
	T uint64                 `json:"t,omitempty"`
	H string                 `json:"h,omitempty"`
}

// putBody is the request body for "p" (put) / "m" (merge) / the
// onDisconnect family.
type putBody struct {
	P string      `json:"p"`
	D interface{} `json:"d"`
	H string      `json:"h,omitempty"`
}

// wireQueryParams renders a model.Params into the wire's compact key set:
// sp/sn (start value/key), ep/en (end value/key), l (limit), vf
// (view-from: "l" or "r"), i (index).
func wireQueryParams(q model.QuerySpec) map[string]interface{} {
	if q.Params.IsDefault() {
		return nil
	}
	out := map[string]interface{}{}
	p := q.Params
	if p.Start.Set {
		out["sp"] = p.Start.Value.Wire()
		if p.Start.Key != "" {
			out["sn"] = string(p.Start.Key)
		}
	}
	if p.End.Set {
		out["ep"] = p.End.Value.Wire()
		if p.End.Key != "" {
			out["en"] = string(p.End.Key)
		}
	}
	if p.Limit > 0 {
		out["l"] = p.Limit
		switch p.Anchor {
		case model.AnchorFirst:
			out["vf"] = "l"
		case model.AnchorLast:
			out["vf"] = "r"
		}
	}
	switch p.Index {
	case model.IndexByKey:
		out["i"] = ".key"
	case model.IndexByValue:
		out["i"] = ".value"
	case model.IndexByChildPath:
		out["i"] = p.ChildPath.String()[1:] // drop leading '/'
	}
	return out
}

// --- frame splitting/reassembly (spec §4.1: frames above ~16KiB) ---

// maxFrameBytes is the payload size above which an outgoing frame is split
// into numbered chunks sent as separate raw (non-JSON) text frames.
const maxFrameBytes = 16 * 1024

// splitFrame returns the raw websocket text frames to send for one JSON
// envelope. Frames under the size threshold are sent as-is; larger ones
// are chunked into "<total>:<index>:<chunk>" pieces that frameAssembler
// reassembles on the far end, matching the wire behavior real Realtime
// Database clients use for large listen/put payloads.
func splitFrame(raw []byte) []string {
	if len(raw) <= maxFrameBytes {
		return []string{string(raw)}
	}
	var chunks []string
	for i := 0; i < len(raw); i += maxFrameBytes {
		end := i + maxFrameBytes
		if end > len(raw) {
			end = len(raw)
		}
		chunks = append(chunks, string(raw[i:end]))
	}
	total := len(chunks)
	out := make([]string, total)
	for i, c := range chunks {
		out[i] = fmt.Sprintf("%d:%d:%s", total, i, c)
	}
	return out
}

// frameAssembler reassembles a sequence of split frame pieces. Whole
// (non-split) frames are JSON and start with '{'; split pieces start with
// a decimal total followed by ':'.
type frameAssembler struct {
	total  int
	pieces []string
}

// isSplitPiece reports whether raw looks like a "<total>:<index>:..." split
// frame piece rather than a complete JSON envelope.
func isSplitPiece(raw string) bool {
	if raw == "" || raw[0] == '{' {
		return false
	}
	i := strings.IndexByte(raw, ':')
	if i <= 0 {
		return false
	}
	_, err := strconv.Atoi(raw[:i])
	return err == nil
}

// Feed processes one incoming raw frame. It returns the reassembled
// envelope bytes and true once the final piece of a split message (or a
// complete, unsplit message) arrives; otherwise it returns (nil, false).
func (a *frameAssembler) Feed(raw string) ([]byte, bool, error) {
	if !isSplitPiece(raw) {
		return []byte(raw), true, nil
	}
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return nil, false, fmt.Errorf("conn: malformed split frame %q", raw)
	}
	total, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, false, fmt.Errorf("conn: malformed split frame total: %w", err)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, false, fmt.Errorf("conn: malformed split frame index: %w", err)
	}
	if a.pieces == nil {
		a.total = total
		a.pieces = make([]string, total)
	}
	if total != a.total || idx < 0 || idx >= a.total {
		return nil, false, fmt.Errorf("conn: split frame index %d out of range for total %d", idx, total)
	}
	a.pieces[idx] = parts[2]
	for _, p := range a.pieces {
		if p == "" {
			return nil, false, nil
		}
	}
	joined := strings.Join(a.pieces, "")
	a.pieces = nil
	a.total = 0
	return []byte(joined), true, nil
}
