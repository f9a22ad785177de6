package threads

import (
	"sort"
	"sync"
	"time"

	"xpost-studio/internal/domain"
)

// DeleteErrorMessage показывается пользователю после отката удаления.
const DeleteErrorMessage = "Failed to delete post. Please try again."

// afterFunc планирует f через d и возвращает функцию отмены.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// PageState — снимок страницы сохранённых тредов.
type PageState struct {
	Threads  []domain.Thread `json:"threads"`
	Deleting []string        `json:"deleting"`
	Error    string          `json:"error,omitempty"`
}

// Page — единственный владелец списка тредов пользователя. Список меняют только
// загрузка и удаление с откатом.
type Page struct {
	mu       sync.Mutex
	threads  []domain.Thread
	deleting map[string]struct{}
	closed   bool

	errMsg   string
	errSeq   uint64
	errStop  func() bool
	errorTTL time.Duration
	after    afterFunc
}

// NewPage создаёт страницу со списком threads.
func NewPage(threads []domain.Thread, errorTTL time.Duration) *Page {
	list := make([]domain.Thread, len(threads))
	copy(list, threads)
	return &Page{
		threads:  list,
		deleting: make(map[string]struct{}),
		errorTTL: errorTTL,
		after:    realAfterFunc,
	}
}

// State возвращает копию текущего состояния.
func (p *Page) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	threads := make([]domain.Thread, len(p.threads))
	copy(threads, p.threads)
	deleting := make([]string, 0, len(p.deleting))
	for id := range p.deleting {
		deleting = append(deleting, id)
	}
	sort.Strings(deleting)
	return PageState{Threads: threads, Deleting: deleting, Error: p.errMsg}
}

// Thread ищет тред по id.
func (p *Page) Thread(threadID string) (domain.Thread, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		if t.ThreadID == threadID {
			return t, true
		}
	}
	return domain.Thread{}, false
}

// IsDeleting сообщает, идёт ли удаление треда.
func (p *Page) IsDeleting(threadID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.deleting[threadID]
	return ok
}

// Close отключает страницу: поздние завершения удалений её больше не меняют.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.errStop != nil {
		p.errStop()
		p.errStop = nil
	}
}

// Closed сообщает, закрыта ли страница.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// setErrorLocked выставляет баннер и планирует его сброс через errorTTL.
func (p *Page) setErrorLocked(msg string) {
	p.errMsg = msg
	p.errSeq++
	seq := p.errSeq
	if p.errStop != nil {
		p.errStop()
	}
	p.errStop = p.after(p.errorTTL, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.errSeq == seq {
			p.errMsg = ""
			p.errStop = nil
		}
	})
}

// Begin начинает удаление: тред сразу убирается из списка и помечается как удаляемый.
// Если страница закрыта, тред уже удаляется или его нет в списке, ok = false.
func (p *Page) Begin(threadID string) (d *Deletion, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, false
	}
	if _, busy := p.deleting[threadID]; busy {
		return nil, false
	}
	for i, t := range p.threads {
		if t.ThreadID != threadID {
			continue
		}
		p.threads = append(p.threads[:i:i], p.threads[i+1:]...)
		p.deleting[threadID] = struct{}{}
		return &Deletion{page: p, thread: t}, true
	}
	return nil, false
}
