package conn

import (
	"bytes"
	"testing"

	"github.com/firebase/rtdb-go/pkg/model"
)

func TestSplitFrameUnderThresholdIsUnchanged(t *testing.T) {
	raw := []byte(`{"t":"d","d":{"r":1,"a":"p"}}`)
	frames := splitFrame(raw)
	if len(frames) != 1 || frames[0] != string(raw) {
		t.Fatalf("expected single unsplit frame, got %v", frames)
	}
}

func TestSplitFrameAboveThresholdReassembles(t *testing.T) {
	raw := bytes.Repeat([]byte("x"), maxFrameBytes*2+500)
	frames := splitFrame(raw)
	if len(frames) < 3 {
		t.Fatalf("expected at least 3 chunks for %d bytes, got %d", len(raw), len(frames))
	}

	asm := &frameAssembler{}
	var out []byte
	for i, f := range frames {
		got, complete, err := asm.Feed(f)
		if err != nil {
			t.Fatalf("Feed(%d): %v", i, err)
		}
		if i < len(frames)-1 {
			if complete {
				t.Fatalf("Feed(%d) reported complete early", i)
			}
			continue
		}
		if !complete {
			t.Fatal("final piece did not complete the frame")
		}
		out = got
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("reassembled frame does not match original (len %d vs %d)", len(out), len(raw))
	}
}

func TestFrameAssemblerPassesThroughWholeJSONFrames(t *testing.T) {
	asm := &frameAssembler{}
	raw := `{"t":"c","d":{"t":"o"}}`
	out, complete, err := asm.Feed(raw)
	if err != nil || !complete || string(out) != raw {
		t.Fatalf("Feed(whole frame) = (%s, %v, %v)", out, complete, err)
	}
}

func TestFrameAssemblerRejectsIndexOutOfRange(t *testing.T) {
	asm := &frameAssembler{}
	if _, _, err := asm.Feed("2:5:chunk"); err == nil {
		t.Fatal("expected error for out-of-range split index")
	}
}

func TestWireQueryParamsDefaultIsNil(t *testing.T) {
	spec := model.DefaultQuery(model.MustPath("/rooms"))
	if p := wireQueryParams(spec); p != nil {
		t.Fatalf("expected nil params for default query, got %v", p)
	}
}

func TestWireQueryParamsLimitAndAnchor(t *testing.T) {
	spec := model.QuerySpec{
		Path: model.MustPath("/rooms"),
		Params: model.Params{
			Index:  model.IndexByValue,
			Limit:  2,
			Anchor: model.AnchorLast,
		},
	}
	p := wireQueryParams(spec)
	if p["l"] != 2 || p["vf"] != "r" || p["i"] != ".value" {
		t.Fatalf("unexpected wire params: %v", p)
	}
}

func TestWireQueryParamsChildPathIndex(t *testing.T) {
	spec := model.QuerySpec{
		Path: model.MustPath("/rooms"),
		Params: model.Params{
			Index:     model.IndexByChildPath,
			ChildPath: model.MustPath("/score"),
		},
	}
	p := wireQueryParams(spec)
	if p["i"] != "score" {
		t.Fatalf("expected child-path index %q, got %v", "score", p["i"])
	}
}

func TestIsSplitPieceRejectsJSONObjects(t *testing.T) {
	if isSplitPiece(`{"t":"d"}`) {
		t.Fatal("a JSON object must not be treated as a split piece")
	}
	if !isSplitPiece("3:0:abc") {
		t.Fatal("expected a well-formed split piece to be recognized")
	}
}
