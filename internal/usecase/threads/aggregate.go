package threads

import (
	"sort"
	"time"

	"xpost-studio/internal/domain"
)

type timedPost struct {
	post domain.Post
	at   time.Time
}

// Aggregate группирует посты в треды по ThreadID.
// Посты без ThreadID и с неразбираемым createdAt отбрасываются. Внутри треда посты
// идут по возрастанию createdAt, треды по убыванию lastUpdated. Обе сортировки
// стабильные, поэтому одинаковый вход даёт одинаковый выход.
func Aggregate(posts []domain.Post) []domain.Thread {
	order := make([]string, 0)
	groups := make(map[string][]timedPost)
	for _, p := range posts {
		if p.ThreadID == "" {
			continue
		}
		at, err := p.Timestamp()
		if err != nil {
			continue
		}
		if _, ok := groups[p.ThreadID]; !ok {
			order = append(order, p.ThreadID)
		}
		groups[p.ThreadID] = append(groups[p.ThreadID], timedPost{post: p, at: at})
	}

	threads := make([]domain.Thread, 0, len(order))
	for _, id := range order {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].at.Before(group[j].at)
		})
		thread := domain.Thread{
			ThreadID:    id,
			Posts:       make([]domain.Post, 0, len(group)),
			CreatedAt:   group[0].at,
			LastUpdated: group[len(group)-1].at,
		}
		for _, tp := range group {
			thread.Posts = append(thread.Posts, tp.post)
		}
		threads = append(threads, thread)
	}
	SortThreads(threads)
	return threads
}

// SortThreads упорядочивает треды по убыванию lastUpdated на месте.
func SortThreads(threads []domain.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastUpdated.After(threads[j].LastUpdated)
	})
}

// Flatten разворачивает треды обратно в плоский список постов.
func Flatten(threads []domain.Thread) []domain.Post {
	var n int
	for _, t := range threads {
		n += len(t.Posts)
	}
	posts := make([]domain.Post, 0, n)
	for _, t := range threads {
		posts = append(posts, t.Posts...)
	}
	return posts
}
