package feed

import (
	"context"
	"errors"
)

// ErrUnavailable источник текстов не настроен
var ErrUnavailable = errors.New("текстовый источник недоступен")

// Feed отдает свежие текстовые фрагменты: заголовки, тексты постов, комментарии
type Feed interface {
	Fetch(ctx context.Context) ([]string, error)
}

// Static отдает заранее заданные тексты. Каждый вызов Fetch возвращает следующую
// порцию, после последней порции возвращаются пустые результаты.
type Static struct {
	batches [][]string
	next    int
}

// NewStatic создает статический источник из порций текстов
func NewStatic(batches ...[]string) *Static {
	return &Static{batches: batches}
}

// Fetch возвращает следующую порцию
func (s *Static) Fetch(context.Context) ([]string, error) {
	if s.next >= len(s.batches) {
		return nil, nil
	}
	batch := s.batches[s.next]
	s.next++
	return batch, nil
}
