package mrkdwn

import "testing"

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bold",
			in:   "this is **important** text",
			want: "this is *important* text",
		},
		{
			name: "italic",
			in:   "this is *subtle* text",
			want: "this is _subtle_ text",
		},
		{
			name: "bold and italic mixed",
			in:   "**bold** and *italic*",
			want: "*bold* and _italic_",
		},
		{
			name: "strikethrough",
			in:   "~~wrong~~ right",
			want: "~wrong~ right",
		},
		{
			name: "link",
			in:   "see [the docs](https://example.com/docs)",
			want: "see <https://example.com/docs|the docs>",
		},
		{
			name: "bare autolink",
			in:   "go to <https://example.com>",
			want: "go to <https://example.com>",
		},
		{
			name: "inline code",
			in:   "run `go version` first",
			want: "run `go version` first",
		},
		{
			name: "heading becomes bold line",
			in:   "## Shopping List\n\nmilk",
			want: "*Shopping List*\n\nmilk",
		},
		{
			name: "bullet list",
			in:   "- milk\n- eggs\n- bread",
			want: "• milk\n• eggs\n• bread",
		},
		{
			name: "ordered list",
			in:   "1. first\n2. second",
			want: "1. first\n2. second",
		},
		{
			name: "ordered list custom start",
			in:   "3. third\n4. fourth",
			want: "3. third\n4. fourth",
		},
		{
			name: "nested list",
			in:   "- fruit\n  - apple\n  - pear\n- dairy",
			want: "• fruit\n  • apple\n  • pear\n• dairy",
		},
		{
			name: "blockquote",
			in:   "> quoted line",
			want: "> quoted line",
		},
		{
			name: "fenced code block with language",
			in:   "```go\nfmt.Println(\"hi\")\n```",
			want: "```go\nfmt.Println(\"hi\")\n```",
		},
		{
			name: "code block content not converted",
			in:   "```\n**not bold** [not](a-link)\n```",
			want: "```\n**not bold** [not](a-link)\n```",
		},
		{
			name: "paragraphs preserved",
			in:   "first paragraph\n\nsecond paragraph",
			want: "first paragraph\n\nsecond paragraph",
		},
		{
			name: "plain text unchanged",
			in:   "nothing special here",
			want: "nothing special here",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.in)
			if got != tt.want {
				t.Errorf("Convert(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvert_FullReply(t *testing.T) {
	in := "## Results\n\nI found **3** options:\n\n- [Option A](https://a.example) — cheap\n- Option B\n\n```sh\ncurl https://a.example\n```"
	want := "*Results*\n\nI found *3* options:\n\n• <https://a.example|Option A> — cheap\n• Option B\n\n```sh\ncurl https://a.example\n```"

	if got := Convert(in); got != want {
		t.Errorf("Convert full reply\n got: %q\nwant: %q", got, want)
	}
}
