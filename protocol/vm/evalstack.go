package vm

import (
	"strings"

	"scriptvm/errors"
)

// EvaluationStack is a random-access stack whose cells are stack
// references recorded in a ReferenceCounter. Index 0 is the top.
type EvaluationStack struct {
	rc    ReferenceCounter
	items []StackItem
}

func NewEvaluationStack(rc ReferenceCounter) *EvaluationStack {
	return &EvaluationStack{rc: rc}
}

func (s *EvaluationStack) Len() int { return len(s.items) }

func (s *EvaluationStack) Push(item StackItem) {
	s.items = append(s.items, item)
	s.rc.AddStackReference(item, 1)
}

func (s *EvaluationStack) Pop() (StackItem, error) {
	return s.Remove(0)
}

// Peek returns the item n positions below the top.
func (s *EvaluationStack) Peek(n int) (StackItem, error) {
	i, err := s.position(n)
	if err != nil {
		return nil, err
	}
	return s.items[i], nil
}

// Insert places item so that it ends up n positions below the top.
func (s *EvaluationStack) Insert(n int, item StackItem) error {
	if n < 0 || n > len(s.items) {
		return errors.WithDetailf(ErrBadIndex, "insert at %d with depth %d", n, len(s.items))
	}
	i := len(s.items) - n
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = item
	s.rc.AddStackReference(item, 1)
	return nil
}

// Remove deletes and returns the item n positions below the top.
func (s *EvaluationStack) Remove(n int) (StackItem, error) {
	i, err := s.position(n)
	if err != nil {
		return nil, err
	}
	item := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.rc.RemoveStackReference(item)
	return item, nil
}

// Swap exchanges the items n and m positions below the top.
func (s *EvaluationStack) Swap(n, m int) error {
	i, err := s.position(n)
	if err != nil {
		return err
	}
	j, err := s.position(m)
	if err != nil {
		return err
	}
	s.items[i], s.items[j] = s.items[j], s.items[i]
	return nil
}

// Reverse reverses the order of the top n items.
func (s *EvaluationStack) Reverse(n int) error {
	if n < 0 {
		return errors.WithDetailf(ErrBadIndex, "reverse %d items", n)
	}
	if n > len(s.items) {
		return errors.WithDetailf(ErrStackUnderflow, "reverse %d items with depth %d", n, len(s.items))
	}
	top := s.items[len(s.items)-n:]
	for i, j := 0, len(top)-1; i < j; i, j = i+1, j-1 {
		top[i], top[j] = top[j], top[i]
	}
	return nil
}

func (s *EvaluationStack) Clear() {
	for _, item := range s.items {
		s.rc.RemoveStackReference(item)
	}
	s.items = nil
}

// CopyTo pushes copies of the top n items onto dst, keeping their
// order. n == -1 copies the whole stack.
func (s *EvaluationStack) CopyTo(dst *EvaluationStack, n int) error {
	if n == -1 {
		n = len(s.items)
	}
	if n < 0 {
		return errors.WithDetailf(ErrBadIndex, "copy %d items", n)
	}
	if n > len(s.items) {
		return errors.WithDetailf(ErrStackUnderflow, "copy %d items with depth %d", n, len(s.items))
	}
	for _, item := range s.items[len(s.items)-n:] {
		dst.Push(item)
	}
	return nil
}

// MoveTo is CopyTo followed by removing the copied items from s.
func (s *EvaluationStack) MoveTo(dst *EvaluationStack, n int) error {
	if n == -1 {
		n = len(s.items)
	}
	if err := s.CopyTo(dst, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.Pop()
	}
	return nil
}

// Items returns a copy of the stack contents, bottom first.
func (s *EvaluationStack) Items() []StackItem {
	return append([]StackItem(nil), s.items...)
}

func (s *EvaluationStack) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range s.items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(item.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (s *EvaluationStack) position(n int) (int, error) {
	if n < 0 {
		return 0, errors.WithDetailf(ErrBadIndex, "negative stack index %d", n)
	}
	if n >= len(s.items) {
		return 0, errors.WithDetailf(ErrStackUnderflow, "index %d with depth %d", n, len(s.items))
	}
	return len(s.items) - 1 - n, nil
}
