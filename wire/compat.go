package wire

import "os"

// Config controls optional decode-side behaviors. Defaults preserve the safe
// ownership story: every decoded payload owns its storage.
type Config struct {
	// BorrowBytesOnDecode: when true, schema-driven decoding surfaces bytes
	// payloads as views borrowed from the input buffer instead of fresh
	// copies. The caller must keep the input alive for as long as the decoded
	// result is used. Strings are unaffected; converting to string always
	// copies.
	BorrowBytesOnDecode bool
}

var config Config

// SetConfig sets the process-global wire configuration.
func SetConfig(c Config) { config = c }

func init() {
	// Env toggle for benchmark and test harnesses.
	if v := os.Getenv("LIGHTWIRE_BORROW_BYTES"); v == "1" || v == "true" {
		config.BorrowBytesOnDecode = true
	}
}
