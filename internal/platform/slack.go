// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"strings"
)

// Slack renders chatbridge's semantic operations into Slack's mrkdwn
// dialect, which differs from Mattermost's CommonMark-ish markdown in
// several places: single-asterisk bold, no native tables or fenced
// language tags, and "~strike~" instead of "~~strike~~".
type Slack struct{}

func (Slack) FormatBold(text string) string   { return "*" + text + "*" }
func (Slack) FormatItalic(text string) string { return "_" + text + "_" }
func (Slack) FormatCode(text string) string   { return "`" + text + "`" }

// FormatCodeBlock drops the language tag — Slack's mrkdwn fences don't
// support one.
func (Slack) FormatCodeBlock(code, language string) string {
	return "```\n" + code + "\n```"
}

func (Slack) FormatLink(text, url string) string {
	return fmt.Sprintf("<%s|%s>", url, text)
}

// FormatHeading has no native counterpart in mrkdwn; bold is the
// closest Slack renders distinctly from body text.
func (Slack) FormatHeading(text string, level int) string {
	return "*" + text + "*"
}

// FormatTable has no native mrkdwn equivalent either, so it renders as
// a monospace block with padded columns.
func (s Slack) FormatTable(headers []string, rows [][]string) string {
	return "```\n" + renderMarkdownTable(headers, rows) + "\n```"
}

func (Slack) FormatKeyValueList(pairs [][2]string) string {
	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "*%s*: %s\n", p[0], p[1])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (Slack) FormatBlockquote(text string) string {
	return prefixLines(text, "> ")
}

func (Slack) FormatListItem(text string, indent int) string {
	return strings.Repeat("  ", indent) + "• " + text
}

func (Slack) FormatNumberedListItem(text string, n, indent int) string {
	return fmt.Sprintf("%s%d. %s", strings.Repeat("  ", indent), n, text)
}

func (Slack) FormatStrikethrough(text string) string { return "~" + text + "~" }
func (Slack) FormatHorizontalRule() string            { return strings.Repeat("─", 20) }

// EscapeText escapes mrkdwn's three reserved characters per Slack's
// own formatting reference.
func (Slack) EscapeText(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(text)
}

// FormatMarkdown converts the CommonMark-flavored markdown produced by
// upstream operations (e.g. headings, "**bold**", "~~strike~~") into
// mrkdwn before it reaches a Slack post, since the two dialects diverge
// enough that passing CommonMark through verbatim renders wrong.
func (Slack) FormatMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		stripped := strings.TrimLeft(ln, "#")
		if stripped != ln {
			lines[i] = "*" + strings.TrimSpace(stripped) + "*"
		}
	}
	text = strings.Join(lines, "\n")

	text = strings.ReplaceAll(text, "~~", "~")
	text = convertDoubleAsteriskBold(text)
	return text
}

// convertDoubleAsteriskBold rewrites "**word**" to "*word*" without
// touching single-asterisk emphasis already present in the source.
func convertDoubleAsteriskBold(text string) string {
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) && runes[i] == '*' && runes[i+1] == '*' {
			b.WriteByte('*')
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}
