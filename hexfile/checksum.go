package hexfile

// recordChecksum computes the 8-bit checksum of a record.
// The checksum is the 2's complement of the sum of all bytes.
func recordChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	// Return 2's complement: invert and add 1
	return ^sum + 1
}
