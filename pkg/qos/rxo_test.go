package qos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReliabilityCompatibility(t *testing.T) {
	writer := DefaultProfile()
	writer.Reliability = ReliabilityReliable
	reader := DefaultProfile()
	reader.Reliability = ReliabilityBestEffort

	ok, mismatches := Compatible(writer, reader)
	require.True(t, ok)
	require.Empty(t, mismatches)

	// Writer weaker than reader requested: non-match, not an error.
	ok, mismatches = Compatible(reader, writer)
	require.False(t, ok)
	require.NotEmpty(t, mismatches)
}

func TestRxOSymmetryOfNonMatch(t *testing.T) {
	writer := DefaultProfile()
	writer.Ownership = Ownership{Kind: OwnershipShared}
	reader := DefaultProfile()
	reader.Ownership = Ownership{Kind: OwnershipExclusive}

	wToR, _ := Compatible(writer, reader)
	require.False(t, wToR)
	// Property 7: if writer W does not match reader R, reader R does not
	// match writer W under the reversed roles either.
	rAsOfferedToW, _ := Compatible(reader, writer)
	require.False(t, rAsOfferedToW)
}

func TestPartitionIntersection(t *testing.T) {
	require.True(t, Partition{}.Intersects(Partition{}))
	require.True(t, Partition{Names: []string{"a", "b"}}.Intersects(Partition{Names: []string{"b", "c"}}))
	require.False(t, Partition{Names: []string{"a"}}.Intersects(Partition{Names: []string{"b"}}))
}

func TestHistoryCompatibility(t *testing.T) {
	offered := DefaultProfile()
	offered.History = History{Kind: HistoryKeepLast, Depth: 3}
	requested := DefaultProfile()
	requested.History = History{Kind: HistoryKeepLast, Depth: 5}

	ok, _ := Compatible(offered, requested)
	require.False(t, ok)

	offered.History.Depth = 10
	ok, _ = Compatible(offered, requested)
	require.True(t, ok)
}

func TestResourceLimitsUnlimited(t *testing.T) {
	offered := DefaultProfile()
	requested := DefaultProfile()
	requested.ResourceLimits.MaxSamples = 100
	ok, _ := Compatible(offered, requested)
	require.True(t, ok, "unlimited offered satisfies any requested bound")

	offered.ResourceLimits.MaxSamples = 50
	ok, _ = Compatible(offered, requested)
	require.False(t, ok)
}
