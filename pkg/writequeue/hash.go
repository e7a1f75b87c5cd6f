package writequeue

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/firebase/rtdb-go/pkg/model"
)

// pushHash computes the content hash the server compares a transaction
// put's precondition against: the well-known Firebase hash, built from a
// canonical priority-then-value encoding of the node, SHA-1 digested and
// base64-encoded (matching the wire's own hash format, e.g. ".sv" pushIds).
// SPEC_FULL.md §D records why this construction was chosen.
func pushHash(n model.Node) string {
	return hashSum(hashableString(n))
}

func hashSum(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func hashableString(n model.Node) string {
	var s string
	if !n.Priority().IsNull() {
		s += "priority:" + priorityHashText(n.Priority()) + ":"
	}
	if n.IsLeaf() {
		s += leafHashText(n)
		return s
	}
	keys := n.Keys()
	for _, k := range keys {
		child := n.GetChild(k)
		s += string(k) + ":" + hashSum(hashableString(child)) + ":"
	}
	return s
}

func priorityHashText(p model.Priority) string {
	switch p.Kind() {
	case model.PriorityNumber:
		return "number:" + strconv.FormatFloat(p.Number(), 'g', -1, 64)
	case model.PriorityString:
		return "string:" + p.Str()
	default:
		return ""
	}
}

func leafHashText(n model.Node) string {
	switch n.LeafKind() {
	case model.LeafBoolean:
		return "boolean:" + strconv.FormatBool(n.Bool())
	case model.LeafNumber:
		return "number:" + strconv.FormatFloat(n.Number(), 'g', -1, 64)
	case model.LeafString:
		return "string:" + n.Str()
	case model.LeafServerValue:
		return "serverValue:" + string(n.ServerValueKind())
	default:
		return fmt.Sprintf("null:%d", model.LeafNull)
	}
}
