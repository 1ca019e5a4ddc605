package converter

import (
	"io"
	"log"
	"sort"
	"testing"
	"time"
)

func TestChainsReferenceKnownSteps(t *testing.T) {
	runner := NewToolRunner("", "python3", ".", time.Minute, log.New(io.Discard, "", 0))
	steps := runner.Steps()
	for mode, chain := range Chains {
		if len(chain) == 0 {
			t.Errorf("mode %s has an empty chain", mode)
		}
		for _, name := range chain {
			if _, ok := steps[name]; !ok {
				t.Errorf("mode %s references unknown step %s", mode, name)
			}
		}
	}
}

func TestChainModesSorted(t *testing.T) {
	modes := ChainModes()
	if len(modes) != len(Chains) {
		t.Fatalf("got %d modes, want %d", len(modes), len(Chains))
	}
	if !sort.StringsAreSorted(modes) {
		t.Errorf("modes not sorted: %v", modes)
	}
}

func TestStepExtensionsConnect(t *testing.T) {
	runner := NewToolRunner("", "python3", ".", time.Minute, log.New(io.Discard, "", 0))
	steps := runner.Steps()
	for mode, chain := range Chains {
		for i := 1; i < len(chain); i++ {
			prev, cur := steps[chain[i-1]], steps[chain[i]]
			ok := false
			for _, ext := range cur.InExts {
				if ext == prev.OutSuffix {
					ok = true
				}
			}
			if !ok {
				t.Errorf("mode %s: step %s output %s not accepted by step %s (%v)",
					mode, prev.Name, prev.OutSuffix, cur.Name, cur.InExts)
			}
		}
	}
}
