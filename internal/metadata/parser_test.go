package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_FullPayload(t *testing.T) {
	payload := []byte(`{
		"name": "World Cup Final",
		"description": "Who wins?",
		"image": "ipfs://Qmimage",
		"properties": {
			"events": [
				{"id": 1, "name": "A", "description": "first"},
				{"id": 2, "name": "B", "description": "second"}
			]
		}
	}`)

	p, ok := Parse(payload)
	require.True(t, ok)
	require.NotNil(t, p.Name)
	require.Equal(t, "World Cup Final", *p.Name)
	require.NotNil(t, p.Description)
	require.Equal(t, "Who wins?", *p.Description)
	require.NotNil(t, p.Image)
	require.Equal(t, "ipfs://Qmimage", *p.Image)

	require.Len(t, p.Events, 2)
	require.Equal(t, int64(1), p.Events[0].ID)
	require.Equal(t, "A", p.Events[0].Name)
	require.Equal(t, "first", p.Events[0].Description)
	require.Equal(t, int64(2), p.Events[1].ID)
}

func TestParse_MalformedElementSkippedNotFatal(t *testing.T) {
	// id 2 misses its description: that single element is skipped while its
	// sibling and the parent survive.
	payload := []byte(`{"name":"X","properties":{"events":[
		{"id":1,"name":"A","description":"d"},
		{"id":2,"name":"B"}
	]}}`)

	p, ok := Parse(payload)
	require.True(t, ok)
	require.NotNil(t, p.Name)
	require.Equal(t, "X", *p.Name)
	require.Len(t, p.Events, 1)
	require.Equal(t, int64(1), p.Events[0].ID)
}

func TestParse_EventFieldValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"non numeric id", `{"properties":{"events":[{"id":"1","name":"A","description":"d"}]}}`, 0},
		{"fractional id", `{"properties":{"events":[{"id":1.5,"name":"A","description":"d"}]}}`, 0},
		{"null name", `{"properties":{"events":[{"id":1,"name":null,"description":"d"}]}}`, 0},
		{"element not object", `{"properties":{"events":[42,{"id":1,"name":"A","description":"d"}]}}`, 1},
		{"missing id", `{"properties":{"events":[{"name":"A","description":"d"}]}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Parse([]byte(tt.payload))
			require.True(t, ok)
			require.Len(t, p.Events, tt.want)
		})
	}
}

func TestParse_StructuralFailures(t *testing.T) {
	for _, payload := range [][]byte{
		[]byte(``),
		[]byte(`not json at all`),
		[]byte(`{"name": "unterminated`),
		[]byte(`[1,2,3]`),
		[]byte(`"just a string"`),
	} {
		_, ok := Parse(payload)
		require.False(t, ok, "payload %q should fail the structural parse", payload)
	}
}

func TestParse_OptionalFieldsAbsent(t *testing.T) {
	p, ok := Parse([]byte(`{}`))
	require.True(t, ok)
	require.Nil(t, p.Name)
	require.Nil(t, p.Description)
	require.Nil(t, p.Image)
	require.Empty(t, p.Events)
}

func TestParse_NullFieldsAreNotAnError(t *testing.T) {
	p, ok := Parse([]byte(`{"name":null,"description":null,"image":null}`))
	require.True(t, ok)
	require.Nil(t, p.Name)
	require.Nil(t, p.Description)
	require.Nil(t, p.Image)
}

func TestParse_PropertiesNotAnObject(t *testing.T) {
	// properties of the wrong shape silently means "no events".
	for _, payload := range []string{
		`{"name":"X","properties":"oops"}`,
		`{"name":"X","properties":[1]}`,
		`{"name":"X","properties":{"events":"oops"}}`,
		`{"name":"X","properties":{"events":{}}}`,
	} {
		p, ok := Parse([]byte(payload))
		require.True(t, ok, payload)
		require.Empty(t, p.Events, payload)
	}
}
