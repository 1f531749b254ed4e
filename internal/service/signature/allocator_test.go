package signature

import (
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

var filenamePattern = regexp.MustCompile(`^[0-9a-v]{20}[0-9a-f]{8}$`)

func TestAllocator_Allocate(t *testing.T) {
	a := NewAllocator()

	name, err := a.Allocate()
	require.NoError(t, err)
	assert.Regexp(t, filenamePattern, name)
}

func TestAllocator_UniqueUnderConcurrency(t *testing.T) {
	a := NewAllocator()

	const workers, perWorker = 8, 250
	var (
		mu    sync.Mutex
		seen  = make(map[string]struct{}, workers*perWorker)
		wg    sync.WaitGroup
		dupes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				name, err := a.Allocate()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				if _, ok := seen[name]; ok {
					dupes++
				}
				seen[name] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, dupes)
	assert.Len(t, seen, workers*perWorker)
}

func TestAllocator_EntropyFailure(t *testing.T) {
	a := &Allocator{random: func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("entropy exhausted")
	}}

	name, err := a.Allocate()
	assert.Empty(t, name)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ErrEntropyUnavailable, ""))
}
