package livelog

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedBuffer lets the drain goroutine and test assertions share a buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSinkPrintsEveryMessageExactlyOnce(t *testing.T) {

	out := new(lockedBuffer)
	s := NewSinkWithInterval(out, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		s.Log("message %d", i)
	}

	s.Stop()

	printed := out.String()

	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, strings.Count(printed, fmt.Sprintf("message %d\n", i)))
	}
}

func TestSinkFlushesMessagesEnqueuedWithStop(t *testing.T) {

	out := new(lockedBuffer)

	// A very slow poll interval so Stop arrives before the first drain tick;
	// the post-stop flush still has to print everything.
	s := NewSinkWithInterval(out, time.Hour)

	s.Log("merging files")
	s.Warn("file #9 doesn't exist")
	s.Error("merge failed: boom")
	s.Stop()

	printed := out.String()

	assert.Contains(t, printed, "merging files")
	assert.Contains(t, printed, "[WARN] file #9 doesn't exist")
	assert.Contains(t, printed, "[ERROR] merge failed: boom")
}

func TestSinkStopIsIdempotent(t *testing.T) {

	out := new(lockedBuffer)
	s := NewSinkWithInterval(out, 10*time.Millisecond)

	s.Log("one")
	s.Stop()
	s.Stop()

	// messages after Stop still print rather than vanishing
	s.Log("two")

	printed := out.String()

	assert.Contains(t, printed, "one")
	assert.Contains(t, printed, "two")
}

func TestSinkEntriesAreTimestamped(t *testing.T) {

	out := new(lockedBuffer)
	s := NewSinkWithInterval(out, 10*time.Millisecond)

	s.Log("hello")
	s.Stop()

	printed := out.String()
	require.NotEmpty(t, printed)

	// "  [15:04:05] hello"
	assert.Regexp(t, `^  \[\d{2}:\d{2}:\d{2}\] hello`, printed)
}
