package optimizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	src := `
blockExecCount:
  entry: 1000
  then0: 12
branchTakenCount:
  else0: 988
avgLoopIterations:
  head: 12.0
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.False(t, p.Empty())
	assert.Equal(t, uint64(1000), p.ExecCount("entry"))
	assert.Equal(t, uint64(988), p.BranchTakenCount["else0"])
	assert.Equal(t, 12.0, p.AvgLoopIterations["head"])
	assert.Zero(t, p.ExecCount("missing"))
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEmptyProfile(t *testing.T) {
	assert.True(t, (*ProfileData)(nil).Empty())
	assert.True(t, (&ProfileData{}).Empty())
}
