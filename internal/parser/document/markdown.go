// Package document converts Markdown text blocks into plain text.
package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// PlainText renders markdown as plain text: emphasis and link syntax are
// dropped, block boundaries become blank lines, list items get a bullet and
// fenced code is kept verbatim. YAML frontmatter is removed.
func PlainText(markdown string) string {
	source := []byte(StripFrontmatter(markdown))
	node := md.Parser().Parse(text.NewReader(source))

	var builder strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			builder.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				builder.WriteString("\n")
			}
		case ast.KindString:
			builder.Write(n.(*ast.String).Value)
		case ast.KindAutoLink:
			builder.Write(n.(*ast.AutoLink).URL(source))
		case ast.KindParagraph, ast.KindHeading:
			if builder.Len() > 0 {
				builder.WriteString("\n\n")
			}
		case ast.KindList:
			builder.WriteString("\n")
		case ast.KindListItem:
			builder.WriteString("\n• ")
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			lines := n.Lines()
			builder.WriteString("\n\n")
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				builder.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}

// StripFrontmatter removes a leading YAML frontmatter block.
func StripFrontmatter(markdown string) string {
	lines := strings.Split(markdown, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return markdown
	}
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[i+2:], "\n")
		}
	}
	return markdown
}
