// Package mrkdwn converts standard Markdown to Slack's mrkdwn dialect.
//
// The model is instructed to reply in standard Markdown; Slack renders
// a different syntax (*bold* instead of **bold**, <url|text> links,
// no heading support). Conversion parses the Markdown into an AST with
// goldmark and renders mrkdwn from the tree, which survives nesting and
// code blocks where regex rewriting would not.
package mrkdwn

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var parser = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// Convert renders Markdown input as Slack mrkdwn.
func Convert(input string) string {
	source := []byte(input)
	doc := parser.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		renderBlock(&b, source, c, "")
		if c.NextSibling() != nil {
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBlock(b *strings.Builder, source []byte, n ast.Node, indent string) {
	switch node := n.(type) {
	case *ast.Heading:
		// Slack has no headings; bold the line instead.
		b.WriteString("*")
		renderChildren(b, source, node)
		b.WriteString("*")

	case *ast.Paragraph, *ast.TextBlock:
		renderChildren(b, source, n)

	case *ast.Blockquote:
		var inner strings.Builder
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			renderBlock(&inner, source, c, indent)
			if c.NextSibling() != nil {
				inner.WriteString("\n")
			}
		}
		for i, line := range strings.Split(inner.String(), "\n") {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("> " + line)
		}

	case *ast.FencedCodeBlock:
		b.WriteString("```")
		if lang := node.Language(source); lang != nil {
			b.Write(lang)
		}
		b.WriteString("\n")
		writeCodeLines(b, source, node)
		b.WriteString("```")

	case *ast.CodeBlock:
		b.WriteString("```\n")
		writeCodeLines(b, source, node)
		b.WriteString("```")

	case *ast.List:
		renderList(b, source, node, indent)

	case *ast.ThematicBreak:
		b.WriteString("---")

	default:
		renderChildren(b, source, n)
	}
}

func renderList(b *strings.Builder, source []byte, list *ast.List, indent string) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", number)
			number++
		}
		b.WriteString(indent + marker)

		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				b.WriteString("\n")
				renderList(b, source, sub, indent+"  ")
				continue
			}
			if !first {
				b.WriteString("\n" + indent + "  ")
			}
			renderBlock(b, source, c, indent+"  ")
			first = false
		}

		if item.NextSibling() != nil {
			b.WriteString("\n")
		}
	}
}

func writeCodeLines(b *strings.Builder, source []byte, n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}

func renderChildren(b *strings.Builder, source []byte, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		renderInline(b, source, c)
	}
}

func renderInline(b *strings.Builder, source []byte, n ast.Node) {
	switch node := n.(type) {
	case *ast.Text:
		b.Write(node.Segment.Value(source))
		if node.HardLineBreak() || node.SoftLineBreak() {
			b.WriteString("\n")
		}

	case *ast.String:
		b.Write(node.Value)

	case *ast.Emphasis:
		marker := "_"
		if node.Level == 2 {
			marker = "*"
		}
		b.WriteString(marker)
		renderChildren(b, source, node)
		b.WriteString(marker)

	case *east.Strikethrough:
		b.WriteString("~")
		renderChildren(b, source, node)
		b.WriteString("~")

	case *ast.CodeSpan:
		b.WriteString("`")
		renderChildren(b, source, node)
		b.WriteString("`")

	case *ast.Link:
		var label strings.Builder
		renderChildren(&label, source, node)
		dest := string(node.Destination)
		if label.Len() == 0 || label.String() == dest {
			b.WriteString("<" + dest + ">")
		} else {
			b.WriteString("<" + dest + "|" + label.String() + ">")
		}

	case *ast.AutoLink:
		b.WriteString("<" + string(node.URL(source)) + ">")

	case *ast.Image:
		// Slack can't inline images from text; fall back to a link.
		var alt strings.Builder
		renderChildren(&alt, source, node)
		if alt.Len() > 0 {
			b.WriteString("<" + string(node.Destination) + "|" + alt.String() + ">")
		} else {
			b.WriteString("<" + string(node.Destination) + ">")
		}

	default:
		renderChildren(b, source, n)
	}
}
