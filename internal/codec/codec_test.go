package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodec(t *testing.T) {
	type update struct {
		Seq      uint64  `json:"seq"`
		Position float64 `json:"position"`
	}

	b, err := Default.Marshal(update{Seq: 3, Position: 1.5})
	require.NoError(t, err)
	require.JSONEq(t, `{"seq":3,"position":1.5}`, string(b))

	var out update
	require.NoError(t, Default.Unmarshal(b, &out))
	require.Equal(t, update{Seq: 3, Position: 1.5}, out)

	require.Error(t, Default.Unmarshal([]byte("{"), &out))
	require.Equal(t, "application/json", Default.ContentType())
}
