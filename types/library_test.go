package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLibraryWireNames(t *testing.T) {
	want := map[ModelLibrary]string{
		OpenCLIP:             "open_clip",
		SentenceTransformers: "sentence_transformers",
		Timm:                 "timm",
	}
	for lib, name := range want {
		assert.Equal(t, name, lib.String())
		assert.True(t, lib.Valid())

		parsed, err := ParseModelLibrary(name)
		require.NoError(t, err)
		assert.Equal(t, lib, parsed)
	}

	_, err := ParseModelLibrary("OpenCLIP")
	assert.Error(t, err)
	assert.False(t, ModelLibrary(0).Valid())
}

func TestLoadModelRequestJSON(t *testing.T) {
	data, err := json.Marshal(LoadModelRequest{Name: "intfloat/e5-small-v2", Library: SentenceTransformers})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "intfloat/e5-small-v2", "library": "sentence_transformers"}`, string(data))

	_, err = json.Marshal(LoadModelRequest{Name: "x"})
	assert.Error(t, err, "zero library must not reach the wire")
}

func TestLoadedModelsResponseJSON(t *testing.T) {
	var resp LoadedModelsResponse
	err := json.Unmarshal([]byte(`{"models": [{"name": "a", "library": "timm"}]}`), &resp)
	require.NoError(t, err)
	assert.Equal(t, []LoadedModel{{Name: "a", Library: Timm}}, resp.Models)

	err = json.Unmarshal([]byte(`{"models": [{"name": "a", "library": "onnx"}]}`), &resp)
	assert.Error(t, err)
}
