package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/plan"
)

func planWithSummary(summary string) plan.Plan {
	return plan.Plan{
		Summary: summary,
		Sections: []plan.Section{{
			Title: "S",
			Items: []plan.Item{{ID: "1", Content: "q", Status: plan.StatusPending}},
		}},
	}
}

func TestGetMissing(t *testing.T) {
	s := NewMemoryStore(4)
	_, ok := s.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPutGetCopies(t *testing.T) {
	s := NewMemoryStore(4)
	p := planWithSummary("a")
	s.Put("k", p)

	// Mutating the caller's value after Put does not leak in.
	p.Sections[0].Items[0].Content = "mutated"

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "q", got.Sections[0].Items[0].Content)

	// Mutating a returned value does not leak back.
	got.Sections[0].Items[0].Status = plan.StatusDone
	again, _ := s.Get("k")
	assert.Equal(t, plan.StatusPending, again.Sections[0].Items[0].Status)
}

func TestGetOrInit(t *testing.T) {
	s := NewMemoryStore(0)

	got := s.GetOrInit("k", planWithSummary("first"))
	assert.Equal(t, "first", got.Summary)

	got = s.GetOrInit("k", planWithSummary("second"))
	assert.Equal(t, "first", got.Summary, "existing entry wins over fallback")
	assert.Equal(t, 1, s.Len())
}

func TestLastWriterWins(t *testing.T) {
	s := NewMemoryStore(2)
	s.Put("k", planWithSummary("v1"))
	s.Put("k", planWithSummary("v2"))
	got, _ := s.Get("k")
	assert.Equal(t, "v2", got.Summary)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(8)
	const writers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				s.Put("shared", planWithSummary(fmt.Sprintf("w%d-%d", w, i)))
				s.Put(fmt.Sprintf("own-%d", w), planWithSummary("x"))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if p, ok := s.Get("shared"); ok {
					// Never a partially written plan.
					if assert.Len(t, p.Sections, 1) {
						assert.Len(t, p.Sections[0].Items, 1)
					}
				}
				s.GetOrInit("shared", planWithSummary("init"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers+1, s.Len())

	// A final sequential write is what readers observe.
	s.Put("shared", planWithSummary("final"))
	got, _ := s.Get("shared")
	assert.Equal(t, "final", got.Summary)
}

func TestImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore(1)
}
