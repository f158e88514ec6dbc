package broker

import (
	"testing"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

func TestStreamKeyFormat(t *testing.T) {
	meta := DAppMetadata{
		ChainID:     31337,
		DAppAddress: rollupstypes.Address20{0xab, 0xcd},
	}

	got := InputsStream(meta).Key()
	want := "chain-31337:dapp-abcd000000000000000000000000000000000000:rollups-inputs"
	if got != want {
		t.Fatalf("InputsStream key = %q, want %q", got, want)
	}

	if OutputsStream(meta).Key() == InputsStream(meta).Key() {
		t.Fatalf("expected distinct keys per stream name")
	}
	if ClaimsStream(meta).Key() == InputsStream(meta).Key() {
		t.Fatalf("expected distinct keys per stream name")
	}
}

func TestStreamKeyVariesByChainAndDApp(t *testing.T) {
	a := DAppMetadata{ChainID: 1, DAppAddress: rollupstypes.Address20{0x01}}
	b := DAppMetadata{ChainID: 2, DAppAddress: rollupstypes.Address20{0x01}}
	c := DAppMetadata{ChainID: 1, DAppAddress: rollupstypes.Address20{0x02}}

	if InputsStream(a).Key() == InputsStream(b).Key() {
		t.Fatalf("expected distinct keys for distinct chain IDs")
	}
	if InputsStream(a).Key() == InputsStream(c).Key() {
		t.Fatalf("expected distinct keys for distinct dapp addresses")
	}
}

func TestDecodePayloadFieldAcceptsStringAndBytes(t *testing.T) {
	got, err := decodePayloadField(map[string]interface{}{payloadField: "hello"})
	if err != nil || string(got) != "hello" {
		t.Fatalf("decodePayloadField(string) = %q, %v", got, err)
	}

	got, err = decodePayloadField(map[string]interface{}{payloadField: []byte("world")})
	if err != nil || string(got) != "world" {
		t.Fatalf("decodePayloadField([]byte) = %q, %v", got, err)
	}
}

func TestDecodePayloadFieldRejectsMissingOrWrongType(t *testing.T) {
	if _, err := decodePayloadField(map[string]interface{}{}); err == nil {
		t.Fatalf("expected error for missing payload field")
	}
	if _, err := decodePayloadField(map[string]interface{}{payloadField: 42}); err == nil {
		t.Fatalf("expected error for non-string/bytes payload field")
	}
}
