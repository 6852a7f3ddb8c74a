package keys_test

import (
	"path/filepath"
	"testing"

	"tasknode/internal/keys"
)

func TestSealOpenRoundtrip(t *testing.T) {
	node, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate node key: %v", err)
	}
	peer, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate peer key: %v", err)
	}
	peerPub, err := keys.ParsePublicKey(peer.PublicKey())
	if err != nil {
		t.Fatalf("parse peer key: %v", err)
	}
	nodePub, err := keys.ParsePublicKey(node.PublicKey())
	if err != nil {
		t.Fatalf("parse node key: %v", err)
	}

	sealed, err := node.Seal("the oracle speaks", peerPub)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !keys.IsSealed(sealed) {
		t.Fatal("sealed payload must carry the wire prefix")
	}
	plain, err := peer.Open(sealed, nodePub)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "the oracle speaks" {
		t.Fatalf("roundtrip mismatch: %q", plain)
	}
}

func TestOpenWrongPeerFails(t *testing.T) {
	node, _ := keys.Generate()
	peer, _ := keys.Generate()
	stranger, _ := keys.Generate()
	peerPub, _ := keys.ParsePublicKey(peer.PublicKey())
	strangerPub, _ := keys.ParsePublicKey(stranger.PublicKey())

	sealed, err := node.Seal("secret", peerPub)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := peer.Open(sealed, strangerPub); err == nil {
		t.Fatal("opening with the wrong counterparty key must fail")
	}
}

func TestOpenRejectsUnsealedPayload(t *testing.T) {
	node, _ := keys.Generate()
	peer, _ := keys.Generate()
	peerPub, _ := keys.ParsePublicKey(peer.PublicKey())
	if _, err := node.Open("plain text", peerPub); err == nil {
		t.Fatal("expected error for unsealed payload")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if _, err := keys.ParsePublicKey("not hex"); err == nil {
		t.Fatal("expected hex error")
	}
	if _, err := keys.ParsePublicKey("abcd"); err == nil {
		t.Fatal("expected key length error")
	}
}

func TestLoadOrCreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "node.key")
	first, err := keys.LoadOrCreate(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := keys.LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first.PublicKey() != second.PublicKey() {
		t.Fatal("key must survive a reload")
	}
}
