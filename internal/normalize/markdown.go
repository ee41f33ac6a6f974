package normalize

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// ObsidianPayload is an uploaded Obsidian vault file.
type ObsidianPayload struct {
	Path     string `json:"path"` // Vault-relative path, e.g. "daily/2024-03-01.md"
	Markdown string `json:"markdown"`
}

var markdownParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

func obsidianNote(raw []byte) (*Normalized, error) {
	var p ObsidianPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: obsidian: %v", ErrMalformedPayload, err)
	}

	source := []byte(p.Markdown)
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	title := markdownTitle(doc, source)
	if title == "" && p.Path != "" {
		title = strings.TrimSuffix(path.Base(p.Path), path.Ext(p.Path))
	}

	meta := map[string]string{}
	if p.Path != "" {
		meta["vault_path"] = p.Path
	}

	return &Normalized{
		Title: title,
		Text:  markdownText(doc, source),
		Meta:  meta,
	}, nil
}

// markdownTitle derives a title from the first top-level heading.
func markdownTitle(doc ast.Node, source []byte) string {
	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(1),
		toc.Compact(true),
	)
	if err != nil || len(tree.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(string(tree.Items[0].Title))
}

// markdownText walks the AST and concatenates textual leaf nodes in
// document order. Formatting is dropped; block boundaries become newlines.
func markdownText(doc ast.Node, source []byte) string {
	var builder strings.Builder

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && builder.Len() > 0 {
				builder.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			segment := node.Segment
			builder.Write(segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				builder.WriteString("\n")
			}
		case *ast.FencedCodeBlock:
			writeCodeLines(&builder, node.Lines(), source)
		case *ast.CodeBlock:
			writeCodeLines(&builder, node.Lines(), source)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}

func writeCodeLines(builder *strings.Builder, lines *text.Segments, source []byte) {
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		builder.Write(segment.Value(source))
	}
}
