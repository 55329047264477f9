// Package radar is the driver of HLK-LD2410S mmWave presence radars.
//
// A Driver owns the transport, the configuration Session and the report
// Interpreter. Poll is called periodically (see framework.Loop); it reads
// whatever the radar sent and publishes readings to Outputs. Configuration
// commands are bracketed by entering and leaving configuration mode, during
// which reports are not forwarded.
package radar
