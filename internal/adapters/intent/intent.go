package intent

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

const intentBase = "https://x.com/intent/tweet"

// PostURL строит ссылку web-intent с предзаполненным текстом.
func PostURL(text string) string {
	return intentBase + "?" + url.Values{"text": {text}}.Encode()
}

// ComposeThread собирает тред в один пост с нумерацией и разделителями.
func ComposeThread(posts []string) string {
	if len(posts) == 1 {
		return posts[0]
	}
	parts := lo.Map(posts, func(content string, i int) string {
		return fmt.Sprintf("%d/%d\n%s", i+1, len(posts), content)
	})
	return "🧵 THREAD:\n\n" + strings.Join(parts, "\n\n---\n\n")
}

// SequentialPosts возвращает тексты для публикации по одному окну на пост.
func SequentialPosts(posts []string) []string {
	if len(posts) == 1 {
		return []string{posts[0]}
	}
	return lo.Map(posts, func(content string, i int) string {
		if i == 0 {
			return fmt.Sprintf("%s\n\n🧵 1/%d", content, len(posts))
		}
		return fmt.Sprintf("%s\n\n%d/%d", content, i+1, len(posts))
	})
}

// ClipboardText форматирует тред для ручного копирования.
func ClipboardText(posts []string) string {
	parts := lo.Map(posts, func(content string, i int) string {
		if len(posts) > 1 {
			return fmt.Sprintf("%s\n\n%d/%d", content, i+1, len(posts))
		}
		return content
	})
	return strings.Join(parts, "\n\n---\n\n")
}

// TextExport форматирует тред для выгрузки в текстовый файл.
func TextExport(posts []string) string {
	parts := lo.Map(posts, func(content string, i int) string {
		label := "Post"
		if len(posts) > 1 {
			label = fmt.Sprintf("Post %d/%d", i+1, len(posts))
		}
		return fmt.Sprintf("%s:\n%s\n", label, content)
	})
	return strings.Join(parts, "\n---\n\n")
}

// ExportFilename возвращает имя файла выгрузки по UTC-дате.
func ExportFilename(now time.Time) string {
	return "twitter-thread-" + now.UTC().Format(time.DateOnly) + ".txt"
}

// Split разбивает текст на части не длиннее limit рун.
// Сначала ищется граница строки, потом пробел, иначе режется по лимиту.
func Split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := lastBreak(runes, start, end, '\n')
		if split == -1 {
			split = lastBreak(runes, start, end, ' ')
		}
		if split == -1 {
			split = end
		}

		if chunk := strings.TrimSpace(string(runes[start:split])); chunk != "" {
			parts = append(parts, chunk)
		}

		start = split
		for start < len(runes) && (runes[start] == '\n' || runes[start] == ' ') {
			start++
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}

func lastBreak(runes []rune, start, end int, sep rune) int {
	for i := end; i > start; i-- {
		if runes[i] == sep {
			return i
		}
	}
	return -1
}
