package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/ticketpairs/internal/hermes"
	"github.com/MikeSquared-Agency/ticketpairs/internal/reconstruct"
)

func TestService_HandleRequest(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(reconstruct.New(reconstruct.Options{}), pub, discardLogger())

	data, err := json.Marshal(hermes.ReconstructRequest{RequestID: "r1", Ticket: exchange("42", "Please try rebooting.")})
	require.NoError(t, err)
	svc.HandleRequest(hermes.SubjectReconstructRequested, data)

	data, err = json.Marshal(hermes.ReconstructRequest{RequestID: "r2", Ticket: forwarded("43")})
	require.NoError(t, err)
	svc.HandleRequest(hermes.SubjectReconstructRequested, data)

	svc.HandleRequest(hermes.SubjectReconstructRequested, []byte("{broken"))

	require.Len(t, pub.events[hermes.SubjectPairsProduced], 1)
	produced := pub.events[hermes.SubjectPairsProduced][0].(hermes.PairsProduced)
	assert.Equal(t, "r1", produced.RequestID)
	assert.Equal(t, "42", produced.TicketID)
	assert.Equal(t, "DesignSafe-ci", produced.Queue)
	require.Len(t, produced.Pairs, 1)
	assert.Equal(t, " Please try rebooting.", produced.Pairs[0].Chosen)

	require.Len(t, pub.events[hermes.SubjectTicketDiscarded], 1)
	discarded := pub.events[hermes.SubjectTicketDiscarded][0].(hermes.TicketDiscarded)
	assert.Equal(t, "forwarded", discarded.Reason)
	assert.Equal(t, "I am forwarding this to the Security team.", discarded.Detail)

	c := svc.Snapshot()
	assert.Equal(t, 3, c.Requests)
	assert.Equal(t, 1, c.Invalid)
	assert.Equal(t, 2, c.Tickets)
	assert.Equal(t, 1, c.Pairs)
	assert.Equal(t, map[string]int{"forwarded": 1}, c.Discarded)
}

func TestService_SnapshotIsACopy(t *testing.T) {
	svc := NewService(reconstruct.New(reconstruct.Options{}), nil, discardLogger())
	svc.Reconstruct("", forwarded("1"))

	snap := svc.Snapshot()
	snap.Discarded["forwarded"] = 99

	assert.Equal(t, 1, svc.Snapshot().Discarded["forwarded"])
	assert.Equal(t, reconstruct.ModeHistory, svc.Mode())
}
