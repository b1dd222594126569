package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerSelect
	AnswerAccept
	AnswerCancel
)

// Answer is the human input a resumed workflow consumes. Select carries a
// zero-based index into the offered candidate list.
type Answer struct {
	Kind  AnswerKind
	Index int
}

// Source extracts an answer for the given awaited action. A source that has
// nothing to say reports ok=false so the next source is consulted.
type Source interface {
	Answer(action string) (Answer, bool, error)
}

// Resolve walks the sources in priority order and returns the first answer
// found. No answer at all is valid: the workflow suspends again.
func Resolve(action string, sources ...Source) (Answer, error) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		ans, ok, err := src.Answer(action)
		if err != nil {
			return Answer{}, err
		}
		if ok {
			return ans, nil
		}
	}
	return Answer{}, nil
}

// FlagSource reads answers from dedicated command flags.
type FlagSource struct {
	Select string
	Accept bool
	Cancel bool
}

func (f FlagSource) Answer(action string) (Answer, bool, error) {
	if f.Cancel {
		return Answer{Kind: AnswerCancel}, true, nil
	}
	if f.Accept {
		return Answer{Kind: AnswerAccept}, true, nil
	}
	if strings.TrimSpace(f.Select) != "" {
		idx, err := parseRank(f.Select)
		if err != nil {
			return Answer{}, false, err
		}
		return Answer{Kind: AnswerSelect, Index: idx}, true, nil
	}
	return Answer{}, false, nil
}

// JSONSource decodes a structured answer document, the form agents produce.
// Two shapes are accepted: {"pool_selection": N} and
// {"action": "...", "index": N}.
type JSONSource struct {
	Raw string
}

func (j JSONSource) Answer(action string) (Answer, bool, error) {
	raw := strings.TrimSpace(j.Raw)
	if raw == "" {
		return Answer{}, false, nil
	}

	var doc struct {
		PoolSelection *int   `json:"pool_selection"`
		Action        string `json:"action"`
		Index         *int   `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Answer{}, false, clierr.Wrap(clierr.CodeSelection, "invalid answer document", err)
	}

	if doc.PoolSelection != nil {
		return Answer{Kind: AnswerSelect, Index: *doc.PoolSelection}, true, nil
	}
	switch doc.Action {
	case "":
		return Answer{}, false, nil
	case "cancel":
		return Answer{Kind: AnswerCancel}, true, nil
	case "confirm", "accept":
		return Answer{Kind: AnswerAccept}, true, nil
	case ActionSelectPool:
		if doc.Index == nil {
			return Answer{}, false, clierr.New(clierr.CodeSelection, "select_pool answer requires an index")
		}
		return Answer{Kind: AnswerSelect, Index: *doc.Index}, true, nil
	default:
		return Answer{}, false, clierr.New(clierr.CodeSelection, fmt.Sprintf("unknown answer action: %s", doc.Action))
	}
}

// TranscriptSource recovers an answer from prior conversation text, the
// compatibility path for replayed conversations. Raw is either a single
// message or a JSON array of messages; messages are scanned newest first and
// anything undecodable is skipped rather than treated as an error.
type TranscriptSource struct {
	Raw string
}

func (t TranscriptSource) Answer(action string) (Answer, bool, error) {
	raw := strings.TrimSpace(t.Raw)
	if raw == "" {
		return Answer{}, false, nil
	}
	messages := []string{raw}
	if strings.HasPrefix(raw, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			messages = arr
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if ans, ok := decodeTranscriptMessage(messages[i]); ok {
			return ans, true, nil
		}
	}
	return Answer{}, false, nil
}

func decodeTranscriptMessage(message string) (Answer, bool) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Answer{}, false
	}

	// Legacy structured encodings arrive embedded as message text.
	if strings.HasPrefix(text, "{") {
		if ans, ok, err := (JSONSource{Raw: message}).Answer(""); err == nil && ok {
			return ans, true
		}
		return Answer{}, false
	}

	switch {
	case text == "cancel" || text == "no" || strings.HasPrefix(text, "cancel "):
		return Answer{Kind: AnswerCancel}, true
	case text == "confirm" || text == "yes" || text == "accept":
		return Answer{Kind: AnswerAccept}, true
	case strings.HasPrefix(text, "select "):
		if idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(text, "select "))); err == nil {
			return Answer{Kind: AnswerSelect, Index: idx}, true
		}
		return Answer{}, false
	}
	if idx, err := strconv.Atoi(text); err == nil {
		return Answer{Kind: AnswerSelect, Index: idx}, true
	}
	return Answer{}, false
}

func parseRank(raw string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, clierr.New(clierr.CodeSelection, fmt.Sprintf("selection must be a rank number, got %q", raw))
	}
	return idx, nil
}
