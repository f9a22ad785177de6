package threads

import "xpost-studio/internal/domain"

// Deletion — двухфазная операция над страницей: Begin убирает тред,
// Commit подтверждает, Rollback возвращает исходный тред.
// Повторный Commit или Rollback ничего не делает.
type Deletion struct {
	page   *Page
	thread domain.Thread
	done   bool
}

// Thread возвращает исходный тред.
func (d *Deletion) Thread() domain.Thread {
	return d.thread
}

// Commit снимает отметку удаления. Тред остаётся убранным.
func (d *Deletion) Commit() {
	p := d.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.done {
		return
	}
	d.done = true
	if p.closed {
		return
	}
	delete(p.deleting, d.thread.ThreadID)
}

// Rollback возвращает тред в список на его место по lastUpdated и выставляет
// ошибку. Документы, уже удалённые в хранилище, не восстанавливаются.
func (d *Deletion) Rollback() {
	p := d.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.done {
		return
	}
	d.done = true
	if p.closed {
		return
	}
	delete(p.deleting, d.thread.ThreadID)
	p.threads = append(p.threads, d.thread)
	SortThreads(p.threads)
	p.setErrorLocked(DeleteErrorMessage)
}
