// Package solfile writes and reads per-row wavelength solutions as text
// blocks and selects the block that best fits a new observation.
//
// A block is a header followed by one line per calibrated row and a blank
// line:
//
//	#instrument RSS
//	#grating PG0900
//	#grangle 13.625
//	#arangle 27.25
//	#filter PC03850
//	#slit PL0100N001
//	#date 2026-01-02T03:04:05Z
//	#runid 0b0f6f52-5a0e-4c55-9d8e-3a3f0c1d2e4f
//	#function legendre
//	#order 3
//	#domain 0 3171
//	12 4987.21 602.3 -3.1 0.02
//	13 4987.25 602.3 -3.1 0.02
//
// Rows are absent when they were not calibrated. A file may hold any number
// of blocks.
package solfile
