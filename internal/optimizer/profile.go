package optimizer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileData feeds the profile-guided passes: loop averages to the
// level-2 unroller, block counts to the level-3 layout. Keys are block, branch, and
// loop-header names as printed by the IR disassembler.
type ProfileData struct {
	BlockExecCount    map[string]uint64  `yaml:"blockExecCount"`
	BranchTakenCount  map[string]uint64  `yaml:"branchTakenCount"`
	AvgLoopIterations map[string]float64 `yaml:"avgLoopIterations"`
}

// Empty reports whether no counters are present.
func (p *ProfileData) Empty() bool {
	if p == nil {
		return true
	}
	return len(p.BlockExecCount) == 0 &&
		len(p.BranchTakenCount) == 0 &&
		len(p.AvgLoopIterations) == 0
}

// ExecCount returns the recorded execution count for a block, or zero.
func (p *ProfileData) ExecCount(block string) uint64 {
	if p == nil {
		return 0
	}
	return p.BlockExecCount[block]
}

// LoadProfile reads profile counters from a YAML file.
func LoadProfile(path string) (*ProfileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	var p ProfileData
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	return &p, nil
}
