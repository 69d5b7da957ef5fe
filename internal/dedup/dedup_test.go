package dedup

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet()
	s.Seed([]string{"https://example.com/a"})

	assert.False(t, s.IsNew("https://example.com/a"))
	assert.True(t, s.IsNew("https://example.com/b"))

	s.Admit("https://example.com/b", "https://example.com/c")
	assert.False(t, s.IsNew("https://example.com/b"))
	assert.False(t, s.IsNew("https://example.com/c"))
	assert.Equal(t, 3, s.Len())

	// Admitting again is a no-op
	s.Admit("https://example.com/a")
	assert.Equal(t, 3, s.Len())
}

func TestSet_ConcurrentAdmit(t *testing.T) {
	s := NewSet()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				url := fmt.Sprintf("https://example.com/%d", i)
				if s.IsNew(url) {
					s.Admit(url)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}
