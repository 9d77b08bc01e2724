package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueRejectsFloats(t *testing.T) {
	_, err := ParseValue([]byte(`{"points": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integer")
}

func TestParseValueKinds(t *testing.T) {
	v, err := ParseValue([]byte(`{"a":1,"b":"s","c":true,"d":[1,2],"e":null}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(1), obj["a"])
	assert.Equal(t, String("s"), obj["b"])
	assert.Equal(t, Bool(true), obj["c"])
	assert.Equal(t, List{Int(1), Int(2)}, obj["d"])
	assert.Equal(t, Null{}, obj["e"])
}

func TestActionJSONShape(t *testing.T) {
	a := Action{
		ID:            "a1",
		Type:          "score.add",
		Payload:       Obj(P("team", String("home")), P("points", Int(2))),
		Timestamp:     1700000000000,
		UserID:        "u1",
		SchemaVersion: SchemaVersion,
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a1","type":"score.add","payload":{"points":2,"team":"home"},"timestamp":1700000000000,"userId":"u1","schemaVersion":1}`, string(data))

	var back Action
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)
}

func TestActionNullPayload(t *testing.T) {
	var a Action
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a1","type":"game.start","payload":null,"timestamp":1}`), &a))
	assert.Nil(t, a.Payload)
}

func TestObjectCloneIsDeep(t *testing.T) {
	orig := Object{"inner": Object{"n": Int(1)}, "list": List{Int(1)}}
	c := orig.Clone()
	c["inner"].(Object)["n"] = Int(2)
	c["list"].(List)[0] = Int(9)

	assert.Equal(t, Int(1), orig["inner"].(Object)["n"])
	assert.Equal(t, Int(1), orig["list"].(List)[0])
}

func TestToAnyFromAnyRoundTrip(t *testing.T) {
	orig := Object{"a": Int(3), "b": List{String("x"), Bool(false)}}
	back, err := FromAny(ToAny(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}
