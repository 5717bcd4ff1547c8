package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

const recordExtension = ".json.zst"

// Encoder and decoder are safe for concurrent use and reused across calls.
var (
	recordEncoder *zstd.Encoder
	recordDecoder *zstd.Decoder
)

func init() {
	var err error
	recordEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	recordDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// recordName derives a filesystem- and object-key-safe name for a key.
// Tournament and match ids are arbitrary strings, so they are hashed.
func recordName(key models.MatchStateKey) string {
	sum := blake2b.Sum256([]byte(key.TournamentID + "\x00" + key.MatchID))
	return hex.EncodeToString(sum[:]) + recordExtension
}

func encodeRecord(state *models.CachedMatchState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match state %s: %w", state.Key(), err)
	}
	return recordEncoder.EncodeAll(raw, nil), nil
}

func decodeRecord(data []byte) (*models.CachedMatchState, error) {
	raw, err := recordDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress match state record: %w", err)
	}
	state := &models.CachedMatchState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("failed to decode match state record: %w", err)
	}
	return state, nil
}
