package vision

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 255, G: 128, A: 255}, c)

	c, err = ParseColor("0000ff")
	require.NoError(t, err)
	require.Equal(t, color.RGBA{B: 255, A: 255}, c)

	for _, bad := range []string{"", "#fff", "#gg0000"} {
		_, err := ParseColor(bad)
		require.Error(t, err, bad)
	}
}

func TestDefaultStyleValid(t *testing.T) {
	require.NoError(t, DefaultStyle().Validate())
}
