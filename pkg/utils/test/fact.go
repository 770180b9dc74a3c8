package testutils

import "github.com/nickyai/memex/pkg/memory"

// NewTestFact creates an active canon fact for tests.
func NewTestFact(profileID, content string) *memory.Fact {
	fact := memory.NewFact(profileID, content)
	fact.Lane = memory.LaneCanon
	return fact
}
