package keylock

import (
	"sync"
	"testing"
)

func TestLockPerKeyExclusion(t *testing.T) {
	table := NewTable()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Lock("k")
			counter++
			table.Unlock("k")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestLockPairOppositeOrders(t *testing.T) {
	table := NewTable()

	// Two goroutines lock the same pair from opposite ends repeatedly. With
	// unordered acquisition this deadlocks almost immediately.
	var wg sync.WaitGroup
	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		pair := pair
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				table.LockPair(pair[0], pair[1])
				table.UnlockPair(pair[0], pair[1])
			}
		}()
	}
	wg.Wait()
}

func TestLockPairEqualKeys(t *testing.T) {
	table := NewTable()

	table.LockPair("same", "same")
	table.UnlockPair("same", "same")

	// The key is free again afterwards.
	table.Lock("same")
	table.Unlock("same")
}
