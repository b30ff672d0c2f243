package observer

import "encoding/json"

// JSONCodec encodes/decodes snapshots as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(snap *Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func (c *JSONCodec) Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }
