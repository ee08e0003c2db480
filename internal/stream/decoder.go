// ABOUTME: Reassembles one JSON payload from an SSE-framed chat-completion stream.
// ABOUTME: Tries named per-line event strategies, then falls back to a raw {...} scan.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrStreamUnreadable means the body was missing or failed mid-read.
var ErrStreamUnreadable = errors.New("stream unreadable")

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	readChunk    = 32 * 1024
)

// verdict is what a strategy decided about one event.
type verdict int

const (
	pass    verdict = iota // not mine, try the next strategy
	appendT                // append text to the accumulator
	replace                // replace the accumulator and stop
	halt                   // stop processing further lines
)

// strategy inspects one decoded event.
type strategy struct {
	name  string
	apply func(ev gjson.Result) (string, verdict)
}

func nonEmptyString(v gjson.Result) (string, bool) {
	if v.Type != gjson.String || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

func typed(kind, field string, v verdict) func(gjson.Result) (string, verdict) {
	return func(ev gjson.Result) (string, verdict) {
		if ev.Get("type").String() != kind {
			return "", pass
		}
		s, ok := nonEmptyString(ev.Get(field))
		if !ok {
			return "", pass
		}
		return s, v
	}
}

// scalarText renders a truthy scalar as text: a non-empty string, a non-zero
// number in its literal form, or true. Everything else is skipped.
func scalarText(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return nonEmptyString(v)
	case gjson.Number:
		if v.Num == 0 {
			return "", false
		}
		return v.Raw, true
	case gjson.True:
		return v.Raw, true
	default:
		return "", false
	}
}

func field(path string) func(gjson.Result) (string, verdict) {
	return func(ev gjson.Result) (string, verdict) {
		if s, ok := scalarText(ev.Get(path)); ok {
			return s, appendT
		}
		return "", pass
	}
}

// strategies run in this order for every event; the first non-pass verdict wins.
var strategies = []strategy{
	{name: "text-delta", apply: typed("text-delta", "textDelta", appendT)},
	{name: "text-chunk", apply: typed("text-chunk", "textChunk", appendT)},
	{name: "finish", apply: func(ev gjson.Result) (string, verdict) {
		if ev.Get("type").String() == "finish" {
			return "", halt
		}
		return "", pass
	}},
	{name: "text", apply: typed("text", "text", replace)},
	{name: "content", apply: field("content")},
	{name: "chat-completion-chunk", apply: field("choices.0.delta.content")},
}

// Decode drains body and returns the reassembled payload text. It never fails
// on malformed content; the caller validates the result. A nil body or read
// failure yields ErrStreamUnreadable, and cancellation yields ctx.Err().
func Decode(ctx context.Context, body io.Reader) (string, error) {
	raw, err := drain(ctx, body)
	if err != nil {
		return "", err
	}
	return Extract(raw), nil
}

func drain(ctx context.Context, body io.Reader) (string, error) {
	if body == nil {
		return "", fmt.Errorf("%w: no response body", ErrStreamUnreadable)
	}

	var buf bytes.Buffer
	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := body.Read(chunk)
		buf.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			return buf.String(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("%w: %w", ErrStreamUnreadable, err)
		}
	}
}

// Extract applies the line strategies and fallbacks to an already drained buffer.
func Extract(raw string) string {
	var acc strings.Builder

lines:
	for _, line := range dataLines(raw) {
		if !gjson.Valid(line) {
			if strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
				acc.Reset()
			}
			acc.WriteString(line)
			continue
		}

		ev := gjson.Parse(line)
		for _, s := range strategies {
			text, v := s.apply(ev)
			switch v {
			case pass:
				continue
			case appendT:
				acc.WriteString(text)
			case replace:
				acc.Reset()
				acc.WriteString(text)
				break lines
			case halt:
				break lines
			}
			break
		}
	}

	out := acc.String()
	if out == "" {
		out = outermostObject(raw)
	}
	return stripFences(out)
}

// dataLines returns the trimmed payloads of data: lines, minus blanks and [DONE].
func dataLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" || payload == doneSentinel {
			continue
		}
		out = append(out, payload)
	}
	return out
}

// outermostObject returns the span from the first '{' to the last '}', or "".
func outermostObject(raw string) string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return ""
	}
	return raw[start : end+1]
}

func stripFences(s string) string {
	if s == "" {
		return s
	}
	for _, fence := range []string{"```json\n", "```json", "```\n", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	return strings.TrimSpace(s)
}
