package module

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeArgs(t *testing.T) {
	type loginArgs struct {
		Username string `mapstructure:"username"`
		Room     string `mapstructure:"room"`
	}

	var out loginArgs
	err := DecodeArgs(map[string]string{"username": "alice", "room": "lobby"}, &out)
	require.NoError(t, err)
	require.Equal(t, "alice", out.Username)
	require.Equal(t, "lobby", out.Room)
}
