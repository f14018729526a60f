package notifier

import (
	"fmt"
	"strings"
	"time"

	"cloneexec/internal/pkg/text"
)

const maxMessageLen = 3800

// Field 是通知中的一行 "key: value"。
type Field struct {
	Key   string
	Value string
}

// Card 描述一条推送：标题、若干字段、时间。
type Card struct {
	Icon      string
	Title     string
	Fields    []Field
	Footer    string
	Timestamp time.Time
}

// Add appends a field; empty values are dropped at render time.
func (c *Card) Add(key string, value any) {
	c.Fields = append(c.Fields, Field{Key: key, Value: strings.TrimSpace(fmt.Sprint(value))})
}

// Markdown 渲染为 Telegram Markdown，超长时截断。
func (c Card) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(c.Icon + " " + c.Title); header != "" {
		b.WriteString("*" + escape(header) + "*\n")
	}
	var lines []string
	width := 0
	for _, f := range c.Fields {
		if f.Value == "" || strings.TrimSpace(f.Key) == "" {
			continue
		}
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}
	for _, f := range c.Fields {
		if f.Value == "" || strings.TrimSpace(f.Key) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-*s %s", width+1, f.Key+":", sanitize(f.Value)))
	}
	if len(lines) > 0 {
		b.WriteString("```\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n```\n")
	}
	if footer := strings.TrimSpace(c.Footer); footer != "" {
		b.WriteString(escape(footer) + "\n")
	}
	if !c.Timestamp.IsZero() {
		b.WriteString(c.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	return text.Truncate(body, maxMessageLen)
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
