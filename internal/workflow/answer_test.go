package workflow

import (
	"testing"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

func TestFlagSourcePrecedence(t *testing.T) {
	ans, ok, err := FlagSource{Cancel: true, Select: "2"}.Answer(ActionSelectPool)
	if err != nil || !ok || ans.Kind != AnswerCancel {
		t.Fatalf("cancel should win over select: %+v %v %v", ans, ok, err)
	}

	ans, ok, err = FlagSource{Select: "3"}.Answer(ActionSelectPool)
	if err != nil || !ok || ans.Kind != AnswerSelect || ans.Index != 3 {
		t.Fatalf("unexpected select answer: %+v %v %v", ans, ok, err)
	}

	_, ok, err = FlagSource{}.Answer(ActionSelectPool)
	if ok || err != nil {
		t.Fatalf("empty flags should yield no answer: %v %v", ok, err)
	}
}

func TestFlagSourceNonNumericSelect(t *testing.T) {
	_, _, err := FlagSource{Select: "best"}.Answer(ActionSelectPool)
	cErr, isCli := clierr.As(err)
	if !isCli || cErr.Code != clierr.CodeSelection {
		t.Fatalf("non-numeric selection must be a selection error: %v", err)
	}
}

func TestJSONSourceShapes(t *testing.T) {
	cases := []struct {
		raw  string
		kind AnswerKind
		idx  int
	}{
		{`{"pool_selection": 2}`, AnswerSelect, 2},
		{`{"action": "select_pool", "index": 4}`, AnswerSelect, 4},
		{`{"action": "cancel"}`, AnswerCancel, 0},
		{`{"action": "confirm"}`, AnswerAccept, 0},
	}
	for _, tc := range cases {
		ans, ok, err := JSONSource{Raw: tc.raw}.Answer(ActionSelectPool)
		if err != nil || !ok {
			t.Fatalf("answer %s not decoded: %v %v", tc.raw, ok, err)
		}
		if ans.Kind != tc.kind || ans.Index != tc.idx {
			t.Fatalf("answer %s decoded to %+v", tc.raw, ans)
		}
	}
}

func TestJSONSourceInvalid(t *testing.T) {
	if _, _, err := (JSONSource{Raw: "{not json"}).Answer(ActionSelectPool); err == nil {
		t.Fatal("malformed answer document must error")
	}
	if _, _, err := (JSONSource{Raw: `{"action":"select_pool"}`}).Answer(ActionSelectPool); err == nil {
		t.Fatal("select_pool without index must error")
	}
	if _, ok, _ := (JSONSource{Raw: ""}).Answer(ActionSelectPool); ok {
		t.Fatal("empty document should yield no answer")
	}
}

func TestTranscriptSource(t *testing.T) {
	ans, ok, err := TranscriptSource{Raw: "select 2"}.Answer(ActionSelectPool)
	if err != nil || !ok || ans.Kind != AnswerSelect || ans.Index != 2 {
		t.Fatalf("unexpected transcript decode: %+v %v %v", ans, ok, err)
	}
	ans, ok, _ = TranscriptSource{Raw: "3"}.Answer(ActionSelectPool)
	if !ok || ans.Index != 3 {
		t.Fatalf("bare rank should decode: %+v %v", ans, ok)
	}
	ans, ok, _ = TranscriptSource{Raw: "CANCEL"}.Answer(ActionConfirmTransfer)
	if !ok || ans.Kind != AnswerCancel {
		t.Fatalf("cancel should decode case-insensitively: %+v %v", ans, ok)
	}
	if _, ok, _ := (TranscriptSource{Raw: "tell me more about fees"}).Answer(ActionSelectPool); ok {
		t.Fatal("unrelated text should yield no answer")
	}
}

func TestTranscriptSourceScansMessageArray(t *testing.T) {
	raw := `["which pool is cheapest?", "{\"pool_selection\": 1}", "thanks"]`
	ans, ok, err := TranscriptSource{Raw: raw}.Answer(ActionSelectPool)
	if err != nil || !ok || ans.Kind != AnswerSelect || ans.Index != 1 {
		t.Fatalf("embedded structured answer not recovered: %+v %v %v", ans, ok, err)
	}

	raw = `["select 0", "cancel"]`
	ans, ok, _ = TranscriptSource{Raw: raw}.Answer(ActionSelectPool)
	if !ok || ans.Kind != AnswerCancel {
		t.Fatalf("newest message should win: %+v %v", ans, ok)
	}
}

func TestResolvePriorityOrder(t *testing.T) {
	ans, err := Resolve(ActionSelectPool,
		FlagSource{Select: "1"},
		JSONSource{Raw: `{"pool_selection": 5}`},
	)
	if err != nil || ans.Kind != AnswerSelect || ans.Index != 1 {
		t.Fatalf("first source should win: %+v %v", ans, err)
	}

	ans, err = Resolve(ActionSelectPool, FlagSource{}, TranscriptSource{Raw: "select 4"})
	if err != nil || ans.Index != 4 {
		t.Fatalf("later source should be consulted: %+v %v", ans, err)
	}

	ans, err = Resolve(ActionSelectPool, FlagSource{}, TranscriptSource{})
	if err != nil || ans.Kind != AnswerNone {
		t.Fatalf("no sources answering should resolve to none: %+v %v", ans, err)
	}
}
