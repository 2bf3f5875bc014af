package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptions_TypedGetters(t *testing.T) {
	o := Options{
		"has_header":   "true",
		"trim_space":   false,
		"n_float":      float64(3),
		"n_str":        "7",
		"comma_tab":    `\t`,
		"comma_semi":   ";",
		"list_any":     []any{"a", 1, "b"},
		"list_csv":     " a, ,b ",
		"header_map":   map[string]any{"Onset": "onset", "bad": 1},
		"unusable_int": "x",
	}

	assert.True(t, o.Bool("has_header", false))
	assert.False(t, o.Bool("trim_space", true))
	assert.True(t, o.Bool("missing", true))

	assert.Equal(t, 3, o.Int("n_float", 0))
	assert.Equal(t, 7, o.Int("n_str", 0))
	assert.Equal(t, 9, o.Int("unusable_int", 9))

	assert.Equal(t, '\t', o.Rune("comma_tab", ','))
	assert.Equal(t, ';', o.Rune("comma_semi", ','))
	assert.Equal(t, ',', o.Rune("missing", ','))

	assert.Equal(t, []string{"a", "b"}, o.StringSlice("list_any"))
	assert.Equal(t, []string{"a", "b"}, o.StringSlice("list_csv"))
	assert.Nil(t, o.StringSlice("missing"))

	assert.Equal(t, map[string]string{"Onset": "onset"}, o.StringMap("header_map"))
	assert.Equal(t, map[string]string{}, o.StringMap("missing"))

	assert.Equal(t, "3", o.String("n_float", ""))
	assert.Equal(t, "d", o.String("missing", "d"))
}

func TestOptions_NilSafe(t *testing.T) {
	var o Options
	assert.Nil(t, o.Any("x"))
	assert.Equal(t, 5, o.Int("x", 5))
}
