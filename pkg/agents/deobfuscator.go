package agents

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"

	"github.com/packhound/packhound/pkg/domain"
)

// decodedLimit caps any single decoded payload fed back to the model.
const decodedLimit = 32 << 10

// NewDeobfuscator builds the worker that decodes encoded and compressed
// payloads embedded in the corpus.
func NewDeobfuscator(model Completer, opts ...Option) *Agent {
	return NewAgent(domain.RoleDeobfuscator, model, []Tool{
		{
			Name:        "decode_base64",
			Description: `decode a base64 string; arguments: {"data": "<base64 string>"}`,
			Run:         runDecodeBase64,
		},
		{
			Name:        "decode_hex",
			Description: `decode a hexadecimal string; arguments: {"data": "<hex string>"}`,
			Run:         runDecodeHex,
		},
		{
			Name:        "decompress_zlib",
			Description: `decompress a zlib-compressed blob given as base64; arguments: {"data": "<base64 of compressed bytes>"}`,
			Run:         runDecompressZlib,
		},
		{
			Name:        "decode_rot13",
			Description: `apply the ROT13 substitution to a string; arguments: {"data": "<string>"}`,
			Run:         runDecodeROT13,
		},
	}, opts...)
}

type dataArgs struct {
	Data string `mapstructure:"data"`
}

func decodeDataArgs(args map[string]any) (string, error) {
	var a dataArgs
	if err := mapstructure.Decode(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Data == "" {
		return "", fmt.Errorf(`missing required argument "data"`)
	}
	return a.Data, nil
}

func runDecodeBase64(_ context.Context, args map[string]any) (string, error) {
	data, err := decodeDataArgs(args)
	if err != nil {
		return "", err
	}
	decoded, err := decodeBase64Flexible(data)
	if err != nil {
		return "", fmt.Errorf("base64 decode failed: %w", err)
	}
	return renderDecoded(decoded), nil
}

func runDecodeHex(_ context.Context, args map[string]any) (string, error) {
	data, err := decodeDataArgs(args)
	if err != nil {
		return "", err
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.TrimPrefix(data, "0x"))
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("hex decode failed: %w", err)
	}
	return renderDecoded(decoded), nil
}

func runDecompressZlib(_ context.Context, args map[string]any) (string, error) {
	data, err := decodeDataArgs(args)
	if err != nil {
		return "", err
	}
	compressed, err := decodeBase64Flexible(data)
	if err != nil {
		return "", fmt.Errorf("base64 decode failed: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("zlib decompress failed: %w", err)
	}
	defer zr.Close()
	decoded, err := io.ReadAll(io.LimitReader(zr, decodedLimit+1))
	if err != nil {
		return "", fmt.Errorf("zlib decompress failed: %w", err)
	}
	return renderDecoded(decoded), nil
}

func runDecodeROT13(_ context.Context, args map[string]any) (string, error) {
	data, err := decodeDataArgs(args)
	if err != nil {
		return "", err
	}
	return strings.Map(rot13, data), nil
}

func rot13(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return 'a' + (r-'a'+13)%26
	case r >= 'A' && r <= 'Z':
		return 'A' + (r-'A'+13)%26
	}
	return r
}

// decodeBase64Flexible tolerates the padding and alphabet variants that show
// up in obfuscated payloads.
func decodeBase64Flexible(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(s); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("input is not valid base64")
}

// renderDecoded returns decoded bytes as text when printable, otherwise as a
// hex dump summary, truncated to the payload limit either way.
func renderDecoded(b []byte) string {
	if len(b) > decodedLimit {
		b = b[:decodedLimit]
	}
	if isMostlyPrintable(b) {
		return string(b)
	}
	return fmt.Sprintf("(binary payload, %d bytes, hex) %s", len(b), hex.EncodeToString(b))
}

func isMostlyPrintable(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	printable := 0
	for _, c := range b {
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c < 0x7f) {
			printable++
		}
	}
	return printable*10 >= len(b)*9
}
