package domain

import (
	"strings"
	"unicode/utf8"
)

// Tone описывает тон генерируемого поста.
type Tone string

const (
	ToneProfessional  Tone = "professional"
	ToneHumorous      Tone = "humorous"
	ToneEducational   Tone = "educational"
	ToneControversial Tone = "controversial"
	ToneCasual        Tone = "casual"
	ToneInspirational Tone = "inspirational"
)

// DefaultTone используется, если тон не указан.
const DefaultTone = ToneEducational

var tones = map[Tone]string{
	ToneProfessional:  "Professional",
	ToneHumorous:      "Humorous",
	ToneEducational:   "Educational",
	ToneControversial: "Controversial",
	ToneCasual:        "Casual",
	ToneInspirational: "Inspirational",
}

// ParseTone приводит ввод к известному тону. Пустая строка даёт DefaultTone.
func ParseTone(raw string) (Tone, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return DefaultTone, nil
	}
	if _, ok := tones[Tone(trimmed)]; !ok {
		return "", Invalid("tone", "unknown tone "+raw)
	}
	return Tone(trimmed), nil
}

// Label возвращает отображаемое название тона.
func (t Tone) Label() string {
	return tones[t]
}

// PostType описывает форму генерируемого текста.
type PostType string

const (
	PostTypeSingle     PostType = "single"
	PostTypeThread     PostType = "thread"
	PostTypeLongThread PostType = "long-thread"
)

// DefaultPostType используется, если тип не указан.
const DefaultPostType = PostTypeLongThread

// PostTypeSpec описывает ожидаемый размер ответа для типа.
type PostTypeSpec struct {
	Type     PostType
	Label    string
	MinPosts int
	MaxPosts int
}

var postTypes = map[PostType]PostTypeSpec{
	PostTypeSingle:     {Type: PostTypeSingle, Label: "Single Post", MinPosts: 1, MaxPosts: 1},
	PostTypeThread:     {Type: PostTypeThread, Label: "Thread (2-5 posts)", MinPosts: 2, MaxPosts: 5},
	PostTypeLongThread: {Type: PostTypeLongThread, Label: "Long Thread (6-10 posts)", MinPosts: 6, MaxPosts: 10},
}

// ParsePostType приводит ввод к известному типу. Пустая строка даёт DefaultPostType.
func ParsePostType(raw string) (PostType, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return DefaultPostType, nil
	}
	if _, ok := postTypes[PostType(trimmed)]; !ok {
		return "", Invalid("PostType", "unknown post type "+raw)
	}
	return PostType(trimmed), nil
}

// Spec возвращает описание типа.
func (p PostType) Spec() PostTypeSpec {
	if spec, ok := postTypes[p]; ok {
		return spec
	}
	return postTypes[DefaultPostType]
}

// GenerateRequest — тело запроса к API генерации.
type GenerateRequest struct {
	Prompt   string   `json:"prompt"`
	Tone     Tone     `json:"tone"`
	PostType PostType `json:"PostType"`
}

// Draft — сгенерированный или отредактированный черновик поста.
type Draft struct {
	Content        string `json:"content"`
	CharacterCount int    `json:"characterCount"`
	WithinLimit    bool   `json:"withinLimit"`
}

// NewDraft считает длину и признак лимита для текста.
func NewDraft(content string) Draft {
	count := utf8.RuneCountInString(content)
	return Draft{Content: content, CharacterCount: count, WithinLimit: count <= DraftSoftLimit}
}

// BackendHealth описывает состояние API генерации.
type BackendHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// KeyCheck описывает результат проверки ключа API генерации.
type KeyCheck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
