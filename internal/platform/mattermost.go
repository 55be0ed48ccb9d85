// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Mattermost renders chatbridge's semantic operations as Mattermost
// flavored markdown.
type Mattermost struct{}

func (Mattermost) FormatBold(text string) string   { return "**" + text + "**" }
func (Mattermost) FormatItalic(text string) string { return "_" + text + "_" }
func (Mattermost) FormatCode(text string) string   { return "`" + text + "`" }

func (Mattermost) FormatCodeBlock(code, language string) string {
	return "```" + language + "\n" + code + "\n```"
}

func (Mattermost) FormatLink(text, url string) string {
	return fmt.Sprintf("[%s](%s)", text, url)
}

func (Mattermost) FormatHeading(text string, level int) string {
	return strings.Repeat("#", clampHeading(level)) + " " + text
}

func (Mattermost) FormatTable(headers []string, rows [][]string) string {
	return renderMarkdownTable(headers, rows)
}

func (Mattermost) FormatKeyValueList(pairs [][2]string) string {
	return renderKeyValueList(pairs)
}

func (Mattermost) FormatBlockquote(text string) string {
	return prefixLines(text, "> ")
}

func (Mattermost) FormatListItem(text string, indent int) string {
	return strings.Repeat("  ", indent) + "- " + text
}

func (Mattermost) FormatNumberedListItem(text string, n, indent int) string {
	return fmt.Sprintf("%s%d. %s", strings.Repeat("  ", indent), n, text)
}

func (Mattermost) FormatStrikethrough(text string) string { return "~~" + text + "~~" }
func (Mattermost) FormatHorizontalRule() string            { return "---" }

func (Mattermost) EscapeText(text string) string {
	return escapeMarkdownSpecials(text)
}

// FormatMarkdown passes Mattermost-flavored markdown through
// unmodified — Mattermost's renderer already speaks the same dialect
// chatbridge's operations produce.
func (Mattermost) FormatMarkdown(text string) string { return text }

func clampHeading(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

func prefixLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = prefix + ln
	}
	return strings.Join(lines, "\n")
}

func escapeMarkdownSpecials(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"[", "\\[",
		"]", "\\]",
	)
	return replacer.Replace(text)
}

// renderMarkdownTable builds a GitHub/Mattermost-style pipe table with
// display-width-aware column padding so wide characters (CJK, emoji)
// don't throw off alignment.
func renderMarkdownTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				continue
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow(&b, headers, widths)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(&b, row, widths)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("|")
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := w - runewidth.StringWidth(cell)
		if pad < 0 {
			pad = 0
		}
		b.WriteString(" " + cell + strings.Repeat(" ", pad) + " |")
	}
	b.WriteString("\n")
}

func renderKeyValueList(pairs [][2]string) string {
	keyWidth := 0
	for _, p := range pairs {
		if w := runewidth.StringWidth(p[0]); w > keyWidth {
			keyWidth = w
		}
	}
	var b strings.Builder
	for _, p := range pairs {
		pad := keyWidth - runewidth.StringWidth(p[0])
		if pad < 0 {
			pad = 0
		}
		fmt.Fprintf(&b, "**%s**%s: %s\n", p[0], strings.Repeat(" ", pad), p[1])
	}
	return strings.TrimRight(b.String(), "\n")
}
