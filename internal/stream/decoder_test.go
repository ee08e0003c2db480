// ABOUTME: Tests for SSE stream reassembly.
// ABOUTME: Covers each event strategy, raw-line fallbacks, fences, and read failures.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "text deltas concatenate",
			in:   "data: {\"type\":\"text-delta\",\"textDelta\":\"{\\\"foo\"}\n\ndata: {\"type\":\"text-delta\",\"textDelta\":\"\\\":1}\"}\n\ndata: [DONE]\n\n",
			want: `{"foo":1}`,
		},
		{
			name: "full text event strips fences",
			in:   "data: {\"type\":\"text\",\"text\":\"```json\\n{\\\"a\\\":1}\\n```\"}\n\n",
			want: `{"a":1}`,
		},
		{
			name: "text event replaces and stops",
			in: "data: {\"type\":\"text-delta\",\"textDelta\":\"junk\"}\n" +
				"data: {\"type\":\"text\",\"text\":\"{\\\"b\\\":2}\"}\n" +
				"data: {\"type\":\"text-delta\",\"textDelta\":\"more\"}\n",
			want: `{"b":2}`,
		},
		{
			name: "text chunks",
			in:   "data: {\"type\":\"text-chunk\",\"textChunk\":\"{\\\"c\\\":\"}\ndata: {\"type\":\"text-chunk\",\"textChunk\":\"3}\"}\n",
			want: `{"c":3}`,
		},
		{
			name: "finish stops processing",
			in: "data: {\"type\":\"text-delta\",\"textDelta\":\"{}\"}\n" +
				"data: {\"type\":\"finish\"}\n" +
				"data: {\"type\":\"text-delta\",\"textDelta\":\"ignored\"}\n",
			want: `{}`,
		},
		{
			name: "content field",
			in:   "data: {\"content\":\"{\\\"d\\\":\"}\ndata: {\"content\":\"4}\"}\n",
			want: `{"d":4}`,
		},
		{
			name: "content numbers and true are appended, falsy values skipped",
			in: "data: {\"content\":\"{\\\"n\\\":\"}\n" +
				"data: {\"content\":42}\n" +
				"data: {\"content\":0}\n" +
				"data: {\"content\":false}\n" +
				"data: {\"content\":\",\\\"ok\\\":\"}\n" +
				"data: {\"content\":true}\n" +
				"data: {\"content\":\"}\"}\n",
			want: `{"n":42,"ok":true}`,
		},
		{
			name: "chat completion chunks",
			in: "data: {\"id\":\"x\",\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
				"data: {\"id\":\"x\",\"choices\":[{\"delta\":{\"content\":\"{\\\"e\\\":\"}}]}\n\n" +
				"data: {\"id\":\"x\",\"choices\":[{\"delta\":{\"content\":\"5}\"}}]}\n\n" +
				"data: [DONE]\n\n",
			want: `{"e":5}`,
		},
		{
			name: "raw text lines append",
			in:   "data: hello\ndata: world\n",
			want: "helloworld",
		},
		{
			name: "broken json line replaces accumulator",
			in:   "data: prefix\ndata: {\"f\":6\n",
			want: `{"f":6`,
		},
		{
			name: "no data lines falls back to outermost object",
			in:   "garbage before {\"g\":{\"h\":7}} trailing }",
			want: `{"g":{"h":7}} trailing }`,
		},
		{
			name: "no object at all",
			in:   "nothing here",
			want: "",
		},
		{
			name: "non data lines are ignored",
			in:   "event: message\nid: 1\ndata: {\"type\":\"text-delta\",\"textDelta\":\"ok\"}\n: comment\n",
			want: "ok",
		},
		{
			name: "crlf framing",
			in:   "data: {\"type\":\"text-delta\",\"textDelta\":\"{}\"}\r\n\r\ndata: [DONE]\r\n",
			want: "{}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(context.Background(), strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeNilBody(t *testing.T) {
	_, err := Decode(context.Background(), nil)
	if !errors.Is(err, ErrStreamUnreadable) {
		t.Errorf("err = %v, want ErrStreamUnreadable", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestDecodeReadError(t *testing.T) {
	_, err := Decode(context.Background(), failingReader{})
	if !errors.Is(err, ErrStreamUnreadable) {
		t.Errorf("err = %v, want ErrStreamUnreadable", err)
	}
}

// blockingReader returns one chunk, then fails once ctx is canceled.
type blockingReader struct {
	ctx  context.Context
	sent bool
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "data: {\"type\":\"text-delta\",\"textDelta\":\"{\"}\n"), nil
	}
	<-r.ctx.Done()
	return 0, io.ErrUnexpectedEOF
}

func TestDecodeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &blockingReader{ctx: ctx}

	done := make(chan error, 1)
	go func() {
		_, err := Decode(ctx, r)
		done <- err
	}()
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrStreamUnreadable) {
		t.Error("cancellation must not be reported as ErrStreamUnreadable")
	}
}

func TestDecodeAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Decode(ctx, strings.NewReader("data: {}\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
