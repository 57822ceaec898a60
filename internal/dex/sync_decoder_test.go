package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"depthScope/internal/exception"
)

func TestSyncDecoderRoundTrip(t *testing.T) {
	decoder, err := NewSyncDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if decoder.Topics()[0] != crypto.Keccak256Hash([]byte("Sync(uint112,uint112)")) {
		t.Fatalf("sync topic mismatch")
	}

	pool := common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
	max112 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

	pair, _ := PairABI()
	data, err := pair.Events["Sync"].Inputs.NonIndexed().Pack(max112, big.NewInt(2000))
	if err != nil {
		t.Fatalf("pack sync: %v", err)
	}
	if len(data) != 64 {
		t.Fatalf("packed sync length %d", len(data))
	}

	reserves, err := decoder.Decode(syncLog(pool, 100, data))
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if reserves[0].Cmp(max112) != 0 || reserves[1].Int64() != 2000 {
		t.Fatalf("reserves mismatch: %s %s", reserves[0], reserves[1])
	}
}

func TestSyncDecoderRejectsWrongLength(t *testing.T) {
	decoder, err := NewSyncDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	pool := common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")

	for _, data := range [][]byte{nil, make([]byte, 32), make([]byte, 96)} {
		_, err := decoder.Decode(syncLog(pool, 100, data))
		if !errors.Is(err, exception.ErrDecode) {
			t.Fatalf("len %d: expected decode failure, got %v", len(data), err)
		}
	}

	lg := syncLog(pool, 100, syncData(1, 2))
	lg.Topics[0] = common.HexToHash("0x01")
	if _, err := decoder.Decode(lg); !errors.Is(err, exception.ErrDecode) {
		t.Fatalf("expected decode failure for foreign topic, got %v", err)
	}
}
