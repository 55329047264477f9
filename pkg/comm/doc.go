// Package comm provides the frame level protocol of HLK-LD2410S radars.
package comm

// The radar talks over UART using two frame dialects sharing one layout:
//
//   [header 4][length 2, little endian][payload length][trailer 4]
//
// Configuration frames (commands and their acks) use header FD FC FB FA and
// trailer 04 03 02 01. Report frames (periodic measurements) use header
// F4 F3 F2 F1 and trailer F8 F7 F6 F5.
//
// There is no checksum. A frame is accepted when the header is found, the
// length is plausible and the trailer sits exactly where the length says.
// Anything else is skipped byte by byte until the next header.
