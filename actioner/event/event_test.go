package event

import (
	"encoding/json"
	"testing"

	"github.com/hma-go/actioner/actioner/labels"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	bare := `{"content_id": "key1", "signal_hash": "h1", "labels": [{"namespace": "Collaboration", "value": "12345"}]}`
	msg, err := ParseEnvelope(Envelope{ID: "1", Body: []byte(bare)})
	require.NoError(err)
	assert.Equal("key1", msg.ContentID)
	assert.Equal("h1", msg.SignalHash)
	assert.Equal([]labels.Label{labels.Collaboration("12345")}, msg.Labels)

	wrapped, err := json.Marshal(map[string]string{"Message": bare})
	require.NoError(err)
	msg2, err := ParseEnvelope(Envelope{ID: "2", Body: wrapped})
	require.NoError(err)
	assert.Equal(msg, msg2)
}

func TestParseEnvelopeMalformed(t *testing.T) {
	assert := assert.New(t)

	bodies := []string{
		``,
		`not json`,
		`{"Message": "not json either"}`,
		`{"signal_hash": "h1"}`,
		`{"content_id": "c1"}`,
		`{"content_id": "c1", "signal_hash": "h1", "labels": [{"value": "no-namespace"}]}`,
	}
	for _, b := range bodies {
		_, err := ParseEnvelope(Envelope{Body: []byte(b)})
		assert.ErrorIs(err, ErrInvalidEnvelope, "body: %s", b)
	}
}

func TestOutboundMessages(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := MatchMessage{ContentID: "key1", SignalHash: "h1"}
	am := NewActionMessage(&m, labels.Action("EnqueueForReview"))
	assert.Equal("key1", am.ContentID)
	assert.Equal("h1", am.SignalID)
	assert.Equal("unknown", am.SignalSource)

	b, err := json.Marshal(am)
	require.NoError(err)
	assert.JSONEq(`{"content_id":"key1","signal_id":"h1","signal_source":"unknown","action_label":{"namespace":"Action","value":"EnqueueForReview"}}`, string(b))

	m.SignalID = "sig9"
	m.SignalSource = "te"
	rm := NewReactionMessage(&m, labels.Reaction("SAW_THIS_TOO"))
	b, err = json.Marshal(rm)
	require.NoError(err)
	assert.JSONEq(`{"content_id":"key1","signal_id":"sig9","signal_source":"te","reaction_label":{"namespace":"ThreatExchangeReaction","value":"SAW_THIS_TOO"}}`, string(b))
}

func TestBatchInvocation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	raw := `{"Records": [{"messageId": "m1", "body": "{}"}, {"body": "x"}]}`
	var bi BatchInvocation
	require.NoError(json.Unmarshal([]byte(raw), &bi))
	envs := bi.Envelopes()
	require.Equal(2, len(envs))
	assert.Equal("m1", envs[0].ID)
	assert.Equal("record-1", envs[1].ID)
	assert.Equal([]byte("x"), envs[1].Body)
}
