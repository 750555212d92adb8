package concurrentMap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhissng/relay/utils/concurrent/concurrentMap"
)

func TestGetOrSetCreatesOnce(t *testing.T) {
	m := concurrentMap.NewConcurrentMap[string, int]()
	created := 0
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.GetOrSet("k", func() int {
				mu.Lock()
				created++
				mu.Unlock()
				return 7
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	v, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestDeleteFunc(t *testing.T) {
	m := concurrentMap.NewConcurrentMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	removed := m.DeleteFunc(func(_ string, v int) bool { return v%2 == 1 })

	assert.Equal(t, 2, removed)
	assert.Equal(t, map[string]int{"b": 2}, m.Items())
	assert.Equal(t, 1, m.Len())
}
