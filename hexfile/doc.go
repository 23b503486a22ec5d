// Package hexfile parses Intel HEX firmware images.
//
// # Intel HEX Format
//
// Each line is one record:
//
//	:LLAAAATT[DD...]CC
//	  LL   = data byte count
//	  AAAA = 16-bit load offset (big-endian)
//	  TT   = record type
//	  DD   = data bytes
//	  CC   = checksum, two's complement of the sum of all other bytes
//
// Supported record types:
//
//	00 = data
//	01 = end of file
//	02 = extended segment address (offset << 4)
//	03 = start segment address (ignored)
//	04 = extended linear address (upper 16 address bits)
//	05 = start linear address (ignored)
//
// Addresses are the byte addresses used by the bootloader protocol. For the
// PIC16F145x that is twice the word address, so configuration words at word
// 0x8007 appear at 0x1000E.
//
// # Usage
//
//	img, err := hexfile.Parse("firmware.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app := img.Clip(0x1200, 0x2E00)
//	for _, chunk := range app.Chunks(58) {
//	    // program chunk.Address, chunk.Data
//	}
package hexfile
