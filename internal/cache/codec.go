// FILE: lixenwraith/classconfig/internal/cache/codec.go

// Package cache persists resolved class configuration between processes.
// Keys are opaque strings; the resolver embeds the declarations fingerprint
// in them, so entries of an outdated class system are simply never read.
package cache

import (
	"bytes"
	"fmt"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the entry format changes
const schemaVersion uint16 = 1

// entry is the stored form of one resolved configuration
type entry struct {
	Schema uint16
	Key    string
	Config map[string]any
}

func encodeEntry(key string, cfg map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&entry{Schema: schemaVersion, Key: key, Config: cfg}); err != nil {
		return nil, fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	return buf.Bytes(), nil
}

// decodeEntry returns the config stored under key, or ok=false when the
// entry belongs to another key or schema
func decodeEntry(key string, data []byte) (map[string]any, bool, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var e entry
	if err := dec.Decode(&e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	if e.Schema != schemaVersion || e.Key != key {
		return nil, false, nil
	}

	cfg, err := normalizeMap(e.Config)
	if err != nil {
		return nil, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return cfg, true, nil
}

// normalizeMap restores the value shapes the resolver produces: loose
// decoding yields uint64 for non-negative integers.
func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		return normalizeMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case uint64:
		i, err := safecast.Conv[int64](tv)
		if err != nil {
			// Beyond int64; keep the unsigned value
			return tv, nil
		}
		return i, nil
	}
	return v, nil
}
