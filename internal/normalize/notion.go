package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotionPayload is a Notion page with its block children, as delivered by
// a connector that has already walked the Notion API.
type NotionPayload struct {
	PageID         string        `json:"page_id"`
	Title          string        `json:"title"`
	URL            string        `json:"url,omitempty"`
	LastEditedTime string        `json:"last_edited_time,omitempty"`
	Blocks         []NotionBlock `json:"blocks"`
}

// NotionBlock is a single content block. Exactly one of the type-specific
// fields is set, keyed by Type.
type NotionBlock struct {
	Type string `json:"type"`

	Paragraph        *NotionTextBlock `json:"paragraph,omitempty"`
	Heading1         *NotionTextBlock `json:"heading_1,omitempty"`
	Heading2         *NotionTextBlock `json:"heading_2,omitempty"`
	Heading3         *NotionTextBlock `json:"heading_3,omitempty"`
	BulletedListItem *NotionTextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *NotionTextBlock `json:"numbered_list_item,omitempty"`
	Quote            *NotionTextBlock `json:"quote,omitempty"`
	Callout          *NotionTextBlock `json:"callout,omitempty"`
	Code             *NotionCode      `json:"code,omitempty"`
	ToDo             *NotionToDo      `json:"to_do,omitempty"`
}

// NotionTextBlock carries rich text content.
type NotionTextBlock struct {
	RichText []NotionRichText `json:"rich_text"`
}

// NotionCode is a code block with a language tag.
type NotionCode struct {
	RichText []NotionRichText `json:"rich_text"`
	Language string           `json:"language"`
}

// NotionToDo is a checkbox item.
type NotionToDo struct {
	RichText []NotionRichText `json:"rich_text"`
	Checked  bool             `json:"checked"`
}

// NotionRichText is a rich text span; only the plain text is kept.
type NotionRichText struct {
	PlainText string `json:"plain_text"`
}

func notionPage(raw []byte) (*Normalized, error) {
	var p NotionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: notion: %v", ErrMalformedPayload, err)
	}

	var builder strings.Builder
	for _, block := range p.Blocks {
		text := notionBlockText(block)
		if strings.TrimSpace(text) == "" {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n\n")
	}

	meta := map[string]string{}
	if p.PageID != "" {
		meta["page_id"] = p.PageID
	}
	if p.LastEditedTime != "" {
		meta["last_edited_time"] = p.LastEditedTime
	}

	return &Normalized{
		Title: strings.TrimSpace(p.Title),
		Text:  strings.TrimSpace(builder.String()),
		URL:   p.URL,
		Meta:  meta,
	}, nil
}

// notionBlockText extracts the plain text of a single block, preserving
// light structural markers the way the page renders them.
func notionBlockText(block NotionBlock) string {
	switch block.Type {
	case "paragraph":
		if block.Paragraph != nil {
			return notionRichText(block.Paragraph.RichText)
		}
	case "heading_1":
		if block.Heading1 != nil {
			return "# " + notionRichText(block.Heading1.RichText)
		}
	case "heading_2":
		if block.Heading2 != nil {
			return "## " + notionRichText(block.Heading2.RichText)
		}
	case "heading_3":
		if block.Heading3 != nil {
			return "### " + notionRichText(block.Heading3.RichText)
		}
	case "bulleted_list_item":
		if block.BulletedListItem != nil {
			return "- " + notionRichText(block.BulletedListItem.RichText)
		}
	case "numbered_list_item":
		if block.NumberedListItem != nil {
			return "- " + notionRichText(block.NumberedListItem.RichText)
		}
	case "quote":
		if block.Quote != nil {
			return "> " + notionRichText(block.Quote.RichText)
		}
	case "callout":
		if block.Callout != nil {
			return notionRichText(block.Callout.RichText)
		}
	case "code":
		if block.Code != nil {
			return fmt.Sprintf("```%s\n%s\n```", block.Code.Language, notionRichText(block.Code.RichText))
		}
	case "to_do":
		if block.ToDo != nil {
			checkbox := "[ ]"
			if block.ToDo.Checked {
				checkbox = "[x]"
			}
			return checkbox + " " + notionRichText(block.ToDo.RichText)
		}
	}
	// Unsupported block type, skip silently.
	return ""
}

func notionRichText(spans []NotionRichText) string {
	var parts []string
	for _, span := range spans {
		parts = append(parts, span.PlainText)
	}
	return strings.Join(parts, "")
}
