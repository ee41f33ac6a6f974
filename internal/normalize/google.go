package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GoogleDocPayload mirrors the relevant slice of the Google Docs API
// document resource: the body is a list of structural elements, each
// optionally carrying a paragraph made of text runs.
type GoogleDocPayload struct {
	DocumentID string        `json:"documentId"`
	Title      string        `json:"title"`
	RevisionID string        `json:"revisionId,omitempty"`
	Body       GoogleDocBody `json:"body"`
}

// GoogleDocBody holds the document's structural elements in order.
type GoogleDocBody struct {
	Content []GoogleStructuralElement `json:"content"`
}

// GoogleStructuralElement is a single body element. Only paragraph
// elements carry extractable text; tables and section breaks are skipped.
type GoogleStructuralElement struct {
	Paragraph *GoogleParagraph `json:"paragraph,omitempty"`
}

// GoogleParagraph is an ordered run of paragraph elements.
type GoogleParagraph struct {
	Elements []GoogleParagraphElement `json:"elements"`
}

// GoogleParagraphElement wraps a text run. Inline objects and page
// breaks appear as elements without a text run.
type GoogleParagraphElement struct {
	TextRun *GoogleTextRun `json:"textRun,omitempty"`
}

// GoogleTextRun is a textual leaf node.
type GoogleTextRun struct {
	Content string `json:"content"`
}

func googleDoc(raw []byte) (*Normalized, error) {
	var p GoogleDocPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: google_docs: %v", ErrMalformedPayload, err)
	}

	var builder strings.Builder
	for _, elem := range p.Body.Content {
		if elem.Paragraph == nil {
			continue
		}

		var runs []string
		for _, pe := range elem.Paragraph.Elements {
			if pe.TextRun == nil {
				continue
			}
			if strings.TrimSpace(pe.TextRun.Content) == "" {
				continue
			}
			runs = append(runs, pe.TextRun.Content)
		}
		if len(runs) == 0 {
			continue
		}

		paragraph := strings.TrimRight(strings.Join(runs, ""), "\n")
		builder.WriteString(paragraph)
		builder.WriteString("\n")
	}

	meta := map[string]string{}
	if p.DocumentID != "" {
		meta["document_id"] = p.DocumentID
	}
	if p.RevisionID != "" {
		meta["revision_id"] = p.RevisionID
	}

	url := ""
	if p.DocumentID != "" {
		url = "https://docs.google.com/document/d/" + p.DocumentID
	}

	return &Normalized{
		Title: strings.TrimSpace(p.Title),
		Text:  strings.TrimSpace(builder.String()),
		URL:   url,
		Meta:  meta,
	}, nil
}
