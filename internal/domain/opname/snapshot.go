package opname

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"workshop/internal/core/types"
)

// SnapshotEntry is the system state of one part at count time.
type SnapshotEntry struct {
	ItemCode      string         `json:"item_code"`
	ActualQty     types.Quantity `json:"actual_qty"`
	ValuationRate types.Money    `json:"valuation_rate"`
}

// Snapshot maps part code to its system state.
type Snapshot map[string]SnapshotEntry

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// EncodeSnapshot serializes s as zstd-compressed JSON.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Plain JSON is accepted too.
// An empty blob decodes to a nil snapshot.
func DecodeSnapshot(blob []byte) (Snapshot, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw := blob
	if bytes.HasPrefix(blob, zstdMagic) {
		var err error
		raw, err = decoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}
