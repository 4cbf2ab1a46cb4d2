package v4l2

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}

// FourCC packs a four character code into a pixel format value.
func FourCC(code string) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(code); i++ {
		v |= uint32(code[i]) << (8 * i)
	}
	return v
}
