package views

import (
	"context"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

// Small components shared by several pages. The page templates embed them
// through the statusBadge and alert template functions.

// StatusBadge renders a review status pill colored by workflow stage.
func StatusBadge(s core.ReviewStatus) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<span class="badge `)
		b.WriteString(templ.EscapeString(statusClass(s)))
		b.WriteString(`">`)
		b.WriteString(templ.EscapeString(string(s)))
		b.WriteString(`</span>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Alert renders a user-facing error with its support code.
func Alert(m core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert error"><strong>`)
		b.WriteString(templ.EscapeString(m.Message))
		b.WriteString(`</strong>`)
		if m.Detail != "" {
			b.WriteString(": ")
			b.WriteString(templ.EscapeString(m.Detail))
		}
		if m.Code != "" {
			b.WriteString(" (")
			b.WriteString(templ.EscapeString(m.Code))
			b.WriteString(")")
		}
		if m.Action != "" {
			b.WriteString("<br>")
			b.WriteString(templ.EscapeString(m.Action))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func statusClass(s core.ReviewStatus) string {
	switch s {
	case core.StatusApproved, core.StatusReviewed:
		return "done"
	case core.StatusInReview:
		return "active"
	default:
		return "pending"
	}
}

// toHTML renders c for use inside an html/template page.
func toHTML(c templ.Component) (template.HTML, error) {
	return templ.ToGoHTML(context.Background(), c)
}
