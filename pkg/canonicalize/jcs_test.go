package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJCS(t *testing.T) {
	t.Run("map keys are sorted", func(t *testing.T) {
		out, err := JCS(map[string]int{"b": 2, "a": 1, "c": 3})
		require.NoError(t, err)
		require.Equal(t, `{"a":1,"b":2,"c":3}`, string(out))
	})

	t.Run("equivalent values canonicalize identically", func(t *testing.T) {
		type payload struct {
			Name  string         `json:"name"`
			Attrs map[string]any `json:"attrs"`
		}
		a, err := JCS(payload{Name: "x", Attrs: map[string]any{"k1": 1, "k2": "v"}})
		require.NoError(t, err)
		b, err := JCS(payload{Attrs: map[string]any{"k2": "v", "k1": 1}, Name: "x"})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("unmarshalable value errors", func(t *testing.T) {
		_, err := JCS(func() {})
		require.Error(t, err)
	})
}

func TestCanonicalHash(t *testing.T) {
	h1, err := CanonicalHash(map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)

	h3, err := CanonicalHash(map[string]string{"a": "1"})
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestHashBytes(t *testing.T) {
	require.Equal(t, HashBytes([]byte("x")), HashBytes([]byte("x")))
	require.NotEqual(t, HashBytes([]byte("x")), HashBytes([]byte("y")))
}
