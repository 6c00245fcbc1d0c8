package classfile

import "testing"

// FuzzDecode feeds arbitrary byte strings to Decode. The property under
// test is only that Decode never panics: malformed input is expected to
// come back as an error, not as a crash.
func FuzzDecode(f *testing.F) {
	f.Add(buildMinimalClass())
	f.Add([]byte{})
	f.Add([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	f.Add([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
	})
}

func FuzzDecodeInstructions(f *testing.F) {
	f.Add([]byte{0xAA, 0xAB, 0xC4, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, code []byte) {
		_ = DecodeInstructions(code)
	})
}
