package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/ticketpairs/internal/ticket"
)

func makePairs(n int) []ticket.Pair {
	pairs := make([]ticket.Pair, n)
	for i := range pairs {
		pairs[i] = ticket.Pair{
			Prompt:   fmt.Sprintf("Human: q%d\nAssistant:", i),
			Chosen:   fmt.Sprintf(" a%d", i),
			Rejected: ticket.Rejected,
		}
	}
	return pairs
}

func TestSplit_RatioAndDeterminism(t *testing.T) {
	pairs := makePairs(20)

	train, eval := Split(pairs, DefaultTrainRatio, 7)
	assert.Len(t, train, 18)
	assert.Len(t, eval, 2)

	train2, eval2 := Split(pairs, DefaultTrainRatio, 7)
	assert.Equal(t, train, train2)
	assert.Equal(t, eval, eval2)

	// Input order is untouched.
	assert.Equal(t, " a0", pairs[0].Chosen)

	seen := map[string]bool{}
	for _, p := range append(append([]ticket.Pair{}, train...), eval...) {
		seen[p.Chosen] = true
	}
	assert.Len(t, seen, 20, "split must be a partition")
}

func TestSplit_EdgeRatios(t *testing.T) {
	pairs := makePairs(5)

	train, eval := Split(pairs, 1.5, 1)
	assert.Len(t, train, 5)
	assert.Empty(t, eval)

	train, eval = Split(pairs, -1, 1)
	assert.Empty(t, train)
	assert.Len(t, eval, 5)

	train, eval = Split(nil, 0.9, 1)
	assert.Empty(t, train)
	assert.Empty(t, eval)
}

func TestWriteJSON_ReadBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	pairs := makePairs(3)
	pairs[0].Queue = "DesignSafe-ci"
	pairs[0].TicketID = "42"

	require.NoError(t, WriteJSON(dir, "ds", pairs[:2], nil))

	trainPath, evalPath := Paths(dir, "ds")
	got, err := ReadJSON(trainPath)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DesignSafe-ci", got[0].Queue)
	assert.Empty(t, got[0].TicketID, "ticket id is not exported")

	raw, err := os.ReadFile(evalPath)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	var generic []map[string]any
	data, _ := os.ReadFile(trainPath)
	require.NoError(t, json.Unmarshal(data, &generic))
	_, hasCategory := generic[1]["category"]
	assert.False(t, hasCategory, "empty category should be omitted")
	assert.Contains(t, generic[0], "queue")
}

func TestWriteJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pairs.jsonl")
	require.NoError(t, WriteJSONL(path, makePairs(4)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var p ticket.Pair
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		assert.Equal(t, ticket.Rejected, p.Rejected)
		lines++
	}
	assert.Equal(t, 4, lines)
}

func TestReadJSON_Missing(t *testing.T) {
	_, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
