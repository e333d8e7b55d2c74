package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveLastWriteWins(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, SyncDirectionPush, ResolveLastWriteWins(base.Add(time.Second), base))
	assert.Equal(t, SyncDirectionPull, ResolveLastWriteWins(base, base.Add(time.Millisecond)))
	assert.Equal(t, SyncDirectionNone, ResolveLastWriteWins(base, base))
}
