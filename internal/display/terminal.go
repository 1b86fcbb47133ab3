// Package display provides terminal output formatting for feedlab.
package display

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gauthierbraillon/feedlab/internal/post"
)

const separator = " • "

// TerminalFormatter formats feed posts for terminal display.
type TerminalFormatter struct {
	// MaxText caps the post text length. Zero shows the full text.
	MaxText int
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{MaxText: 140}
}

// FormatPost formats a single post for display.
func (f *TerminalFormatter) FormatPost(p post.Post) string {
	var lines []string

	// Header: [TAG] Author
	lines = append(lines, fmt.Sprintf("%s %s", tag(p), authorName(p)))

	meta := "  " + f.FormatTime(p.Time)
	if p.ConditionID != "" {
		meta += separator + p.ConditionID
	}
	lines = append(lines, meta)

	if p.Text != "" {
		text := p.Text
		if f.MaxText > 0 {
			text = f.TruncateText(text, f.MaxText)
		}
		lines = append(lines, "  "+text)
	}

	if p.Article != nil && p.Article.Title != "" {
		lines = append(lines, "  ["+p.Article.Title+"]")
	}
	if file := p.ImageFile(); file != "" {
		lines = append(lines, "  image: "+file)
	}

	if engagement := formatEngagement(p.Engagement); engagement != "" {
		lines = append(lines, "  "+engagement)
	}

	return strings.Join(lines, "\n") + "\n"
}

func tag(p post.Post) string {
	switch {
	case p.IsStimulus() && p.IsTailored:
		return "[STIMULUS ★]"
	case p.IsStimulus():
		return "[STIMULUS]"
	default:
		return "[FILLER]"
	}
}

func authorName(p post.Post) string {
	if p.Author == nil || p.Author.Name == "" {
		return "(unknown author)"
	}
	return p.Author.Name
}

// formatEngagement formats engagement stats into a single line.
func formatEngagement(e *post.Engagement) string {
	if e == nil {
		return ""
	}
	parts := []string{
		pluralCount(e.Likes, "like"),
		pluralCount(e.Comments, "comment"),
		pluralCount(e.Shares, "share"),
	}
	return strings.Join(parts, separator)
}

// FormatFeed formats multiple posts for display.
func (f *TerminalFormatter) FormatFeed(posts []post.Post) string {
	if len(posts) == 0 {
		return "No posts to display.\n"
	}

	formatted := make([]string, 0, len(posts))
	for _, p := range posts {
		formatted = append(formatted, f.FormatPost(p))
	}

	return strings.Join(formatted, "\n---\n\n")
}

var timeUnits = map[string]string{
	"m": "minute",
	"h": "hour",
	"d": "day",
	"w": "week",
}

// FormatTime expands a compact relative time such as "5h" into "5 hours ago".
// Anything else is returned unchanged.
func (f *TerminalFormatter) FormatTime(s string) string {
	if s == "" {
		return "just now"
	}
	i := len(s)
	for i > 0 && (s[i-1] < '0' || s[i-1] > '9') {
		i--
	}
	n, err := strconv.Atoi(s[:i])
	unit, known := timeUnits[strings.ToLower(s[i:])]
	if err != nil || !known {
		return s
	}
	return pluralize(n, unit)
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	return pluralCount(n, unit) + " ago"
}

func pluralCount(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string([]rune(text)[:maxLen-3]) + "..."
}
