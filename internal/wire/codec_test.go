package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJSONCodecRoundTrip verifies decode(encode(m)) == m for
// representative envelopes, including the nullable callback-id.
func TestJSONCodecRoundTrip(t *testing.T) {
	t.Parallel()

	ballot := int64(7)
	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "fire and forget",
			env: Envelope{
				Sender:    "accepter",
				Recipient: "learner",
				Body:      Accepted(3, 12, "x"),
			},
		},
		{
			name: "request with callback",
			env: Envelope{
				Sender:      "client",
				Recipient:   "proposer",
				Body:        Propose("v"),
				CallbackID:  "cb-1",
				HasCallback: true,
			},
		},
		{
			name: "response",
			env: Envelope{
				Sender:      "proposer",
				Recipient:   "client",
				Body:        Body{FieldMessageType: "propose"},
				CallbackID:  "cb-1",
				HasCallback: true,
				IsResponse:  true,
			},
		},
		{
			name: "promise with accepted pair",
			env: Envelope{
				Sender:    "accepter",
				Recipient: "proposer",
				Body:      Promise(2, 9, &ballot, "old", 5),
			},
		},
		{
			name: "promise with nothing accepted",
			env: Envelope{
				Sender:    "accepter",
				Recipient: "proposer",
				Body:      Promise(2, 9, nil, nil, 5),
			},
		},
	}

	codec := JSONCodec{}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := codec.Encode(tc.env)
			require.NoError(t, err)

			got, err := codec.Decode(data)
			require.NoError(t, err)

			require.Equal(t, tc.env.Sender, got.Sender)
			require.Equal(t, tc.env.Recipient, got.Recipient)
			require.Equal(t, tc.env.HasCallback, got.HasCallback)
			require.Equal(t, tc.env.CallbackID, got.CallbackID)
			require.Equal(t, tc.env.IsResponse, got.IsResponse)
			require.Equal(t, tc.env.Body.MessageType(), got.Body.MessageType())
		})
	}
}

// TestJSONCodecPromiseFieldsSurviveWire checks that the nullable
// accepted_ballot_id reads back correctly on both sides of a wire trip.
func TestJSONCodecPromiseFieldsSurviveWire(t *testing.T) {
	t.Parallel()

	codec := JSONCodec{}

	ballot := int64(4)
	data, err := codec.Encode(Envelope{
		Sender:    "accepter",
		Recipient: "proposer",
		Body:      Promise(1, 6, &ballot, "w", 3),
	})
	require.NoError(t, err)

	env, err := codec.Decode(data)
	require.NoError(t, err)

	got, ok, err := env.Body.OptionalInt64(FieldAcceptedBallotID)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, got)
	require.Equal(t, "w", env.Body.Value(FieldAcceptedValue))

	// And the null case.
	data, err = codec.Encode(Envelope{
		Sender:    "accepter",
		Recipient: "proposer",
		Body:      Promise(1, 6, nil, nil, 3),
	})
	require.NoError(t, err)

	env, err = codec.Decode(data)
	require.NoError(t, err)

	_, ok, err = env.Body.OptionalInt64(FieldAcceptedBallotID)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestJSONCodecDecodeErrors exercises the malformed-datagram paths; every
// one must surface ErrDecode so the server can log and drop.
func TestJSONCodecDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("not json at all")},
		{name: "truncated", data: []byte(`["a","b",{"message_type"`)},
		{name: "wrong arity", data: []byte(`["a","b"]`)},
		{name: "null body", data: []byte(`["a","b",null,null,false]`)},
		{name: "body missing message_type", data: []byte(`["a","b",{},null,false]`)},
		{name: "non-string sender", data: []byte(`[1,"b",{"message_type":"propose"},null,false]`)},
	}

	codec := JSONCodec{}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.Decode(tc.data)
			require.ErrorIs(t, err, ErrDecode)
		})
	}
}

// TestBodyFieldHelpers covers the typed accessors actor handlers rely on.
func TestBodyFieldHelpers(t *testing.T) {
	t.Parallel()

	body := Body{
		FieldMessageType: TypePrepare,
		FieldInstanceID:  int64(3),
		FieldBallotID:    float64(9), // as it arrives post-decode
	}

	id, err := body.Int64(FieldInstanceID)
	require.NoError(t, err)
	require.EqualValues(t, 3, id)

	ballot, err := body.Int64(FieldBallotID)
	require.NoError(t, err)
	require.EqualValues(t, 9, ballot)

	_, err = body.Int64("missing")
	require.Error(t, err)

	typ, err := body.String(FieldMessageType)
	require.NoError(t, err)
	require.Equal(t, TypePrepare, typ)

	_, err = body.String(FieldInstanceID)
	require.Error(t, err)

	// A typed-nil pointer counts as null, same as a decoded JSON null.
	body[FieldAcceptedBallotID] = (*int64)(nil)
	_, ok, err := body.OptionalInt64(FieldAcceptedBallotID)
	require.NoError(t, err)
	require.False(t, ok)
}
