package agents

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBase64Tool(t *testing.T) {
	out, err := runDecodeBase64(context.Background(), map[string]any{
		"data": base64.StdEncoding.EncodeToString([]byte("import os; os.system('id')")),
	})
	require.NoError(t, err)
	assert.Equal(t, "import os; os.system('id')", out)
}

func TestDecodeBase64ToolAcceptsUnpadded(t *testing.T) {
	out, err := runDecodeBase64(context.Background(), map[string]any{"data": "aGVsbG8"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestDecodeBase64ToolRejectsGarbage(t *testing.T) {
	_, err := runDecodeBase64(context.Background(), map[string]any{"data": "!!! not base64 !!!"})
	require.Error(t, err)
}

func TestDecodeBase64ToolMissingArgument(t *testing.T) {
	_, err := runDecodeBase64(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"data"`)
}

func TestDecodeHexTool(t *testing.T) {
	out, err := runDecodeHex(context.Background(), map[string]any{"data": "0x68747470733a2f2f6576696c2e696f"})
	require.NoError(t, err)
	assert.Equal(t, "https://evil.io", out)
}

func TestDecodeHexToolToleratesWhitespace(t *testing.T) {
	out, err := runDecodeHex(context.Background(), map[string]any{"data": "68 65 78\n21"})
	require.NoError(t, err)
	assert.Equal(t, "hex!", out)
}

func TestDecompressZlibTool(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("exec(__import__('base64').b64decode(p))"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := runDecompressZlib(context.Background(), map[string]any{
		"data": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	require.NoError(t, err)
	assert.Equal(t, "exec(__import__('base64').b64decode(p))", out)
}

func TestDecompressZlibToolRejectsPlainData(t *testing.T) {
	_, err := runDecompressZlib(context.Background(), map[string]any{
		"data": base64.StdEncoding.EncodeToString([]byte("not compressed")),
	})
	require.Error(t, err)
}

func TestDecodeROT13Tool(t *testing.T) {
	out, err := runDecodeROT13(context.Background(), map[string]any{"data": "uggcf://rknzcyr.pbz 123"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com 123", out)
}

func TestRenderDecodedBinaryPayload(t *testing.T) {
	out := renderDecoded([]byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0xfd})
	assert.Contains(t, out, "binary payload")
	assert.Contains(t, out, "000102fffefd")
}
