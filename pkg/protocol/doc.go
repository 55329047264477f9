// Package protocol implements the command and acknowledgement exchange
// used to configure HLK-LD2410S radars.
//
// A command is a config frame whose payload starts with a little endian
// command word followed by its parameters. The radar answers with a config
// frame carrying the command word with bit 0x0100 set, a status word
// (0 success, 1 failure) and optional return data. Only one command may be
// outstanding at a time, and the radar needs a short pause between commands.
package protocol
