package json

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PreservesKeyOrder(t *testing.T) {
	in := `{"trial_type": {"Description": "d", "Levels": {"stop": "s", "go": "g"}}, "onset": 1, "a": [1, "x", null, true]}`

	obj, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"trial_type", "onset", "a"}, obj.Keys())

	tt, ok := obj.Get("trial_type")
	require.True(t, ok)
	col, ok := tt.(*Object)
	require.True(t, ok)
	levels, _ := col.Get("Levels")
	assert.Equal(t, []string{"stop", "go"}, levels.(*Object).Keys())

	onset, _ := obj.Get("onset")
	assert.Equal(t, json.Number("1"), onset)

	arr, _ := obj.Get("a")
	assert.Equal(t, []any{json.Number("1"), "x", nil, true}, arr)
}

func TestMarshalJSON_RoundTripKeepsOrder(t *testing.T) {
	in := `{"z":1,"a":{"y":"2","b":[]},"m":null}`
	obj, err := DecodeBytes([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "empty document"},
		{name: "array_root", in: `[1,2]`, want: "root must be an object"},
		{name: "syntax", in: `{"a": }`, want: "json"},
		{name: "trailing", in: `{"a":1} {"b":2}`, want: "trailing data"},
		{name: "unterminated", in: `{"a":1`, want: "json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDecode_DuplicateKey(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"a":{"x":1,"x":2}}`))
	require.Error(t, err)

	var dke *DuplicateKeyError
	require.ErrorAs(t, err, &dke)
	assert.Equal(t, "x", dke.Key)
}

func TestObject_SetKeepsPositionAndCloneIsDeep(t *testing.T) {
	o := NewObject()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, o.Keys())

	inner := NewObject()
	inner.Set("k", "v")
	o.Set("inner", inner)

	cp := o.Clone()
	inner.Set("k", "changed")
	got, _ := cp.Get("inner")
	v, _ := got.(*Object).Get("k")
	assert.Equal(t, "v", v)
}

func TestNilObject(t *testing.T) {
	var o *Object
	assert.Equal(t, 0, o.Len())
	assert.Nil(t, o.Keys())
	_, ok := o.Get("x")
	assert.False(t, ok)
	b, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestEncode_Indented(t *testing.T) {
	o := NewObject()
	o.Set("b", "x")
	o.Set("a", 1)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, o))
	assert.Equal(t, "{\n  \"b\": \"x\",\n  \"a\": 1\n}\n", buf.String())
}
