package scheduler

import (
	"testing"
	"time"
)

func TestComputePriorityLowerSampleNumberWins(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p1 := computePriority(1, now)
	p2 := computePriority(2, now)
	if !(p1 > p2) {
		t.Fatalf("sample 1 priority %v should exceed sample 2 priority %v", p1, p2)
	}
}

func TestComputePriorityEarlierSubmissionWinsTies(t *testing.T) {
	earlier := time.Unix(1_700_000_000, 0)
	later := earlier.Add(10 * time.Second)
	pEarlier := computePriority(5, earlier)
	pLater := computePriority(5, later)
	if !(pEarlier > pLater) {
		t.Fatalf("earlier submission priority %v should exceed later %v", pEarlier, pLater)
	}
}
