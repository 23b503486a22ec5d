// Package protocol implements the packet format of the USB HID flash bootloader.
//
// This package provides functions to build command packets and parse response
// packets on the host, and to decode commands and encode responses on the device.
//
// # Protocol Overview
//
// Every transfer is a single 64-byte HID report. The first byte is always the
// opcode; numeric fields are little-endian; unused bytes are zero:
//
//	Command:  [CMD][ADDR(4)][SIZE][DATA(58)]
//	Response: [CMD][...opcode dependent...]
//
// Data fields shorter than 58 bytes are right-justified, so the used bytes
// occupy the end of the packet.
//
// Only QUERY_DEVICE, GET_DATA and QUERY_EXTENDED_INFO are answered. All other
// commands complete silently; the host learns about failures by reading memory
// back.
//
// # Command Builders
//
// Use the Build* functions to create command packets:
//
//	pkt := protocol.BuildQueryDeviceCmd()
//	pkt, err := protocol.BuildProgramDeviceCmd(addr, data)
//	pkt, err := protocol.BuildGetDataCmd(addr, 58)
//
// # Response Parsers
//
// Use the Parse* functions on the packet read back from the device:
//
//	layout, err := protocol.ParseQueryDeviceResponse(&pkt)
//	read, err := protocol.ParseGetDataResponse(&pkt)
//	info, err := protocol.ParseExtendedInfoResponse(&pkt)
//
// A response that does not echo the expected opcode yields a *ResponseError.
//
// # Device Side
//
// ParseCommand decodes a received packet, and the Encode* functions build the
// responses a bootloader sends back.
package protocol
