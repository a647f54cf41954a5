package history

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

const DefaultMaxItems = 1000

// History is the bounded list of command lines entered in past and
// current sessions. An empty file name keeps it in memory only.
type History struct {
	items    []string
	file     string
	maxItems int
	mu       sync.Mutex
}

func New(file string, maxItems int) (*History, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	h := &History{
		file:     file,
		maxItems: maxItems,
	}
	if err := h.load(); err != nil {
		return nil, fmt.Errorf("loading history %s: %w", file, err)
	}
	return h, nil
}

// Add appends item unless it repeats the previous entry, and persists
// the list.
func (h *History) Add(item string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.items); n > 0 && h.items[n-1] == item {
		return nil
	}
	h.items = append(h.items, item)
	h.trim()
	return h.save()
}

func (h *History) GetAll() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string{}, h.items...)
}

// Replay calls fn for every entry, oldest first.
func (h *History) Replay(fn func(string) error) error {
	for _, item := range h.GetAll() {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) trim() {
	if len(h.items) > h.maxItems {
		h.items = h.items[len(h.items)-h.maxItems:]
	}
}

func (h *History) load() error {
	if h.file == "" {
		return nil
	}
	file, err := os.Open(h.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			h.items = append(h.items, line)
		}
	}
	h.trim()
	return scanner.Err()
}

func (h *History) save() (err error) {
	if h.file == "" {
		return nil
	}
	file, err := os.Create(h.file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	writer := bufio.NewWriter(file)
	for _, item := range h.items {
		if _, err := writer.WriteString(item + "\n"); err != nil {
			return err
		}
	}
	return writer.Flush()
}
