package kitoken

import "encoding/json"

// encodeConfig/decodeConfig serialize the config blob embedded in the
// binary definition format. Config has no performance-sensitive
// encode/decode path of its own (it's read once per Definition load), so
// unlike the vocabulary entries it is encoded with encoding/json rather
// than a bespoke varint layout.
func encodeConfig(c Config) []byte {
	b, err := json.Marshal(c)
	if err != nil {
		// Config contains only marshalable fields; a failure here would be
		// a programming error, not a runtime condition to recover from.
		panic(err)
	}
	return b
}

func decodeConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, &ConversionError{SourceFormat: "native", Reason: "malformed config blob: " + err.Error()}
	}
	return c, nil
}
