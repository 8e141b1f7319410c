// Package frame decodes and encodes the text representation of CAN frames
// emitted by serial CAN adapters.
//
// A frame line looks like:
//
//	FR:ID=246:LN=8:8E:62:1C:F6:1E:63:63:20
//
// The line is split into at most four colon-delimited fields so that the
// colons inside the data field are never mistaken for field separators.
// The declared length must match the number of decoded data bytes.
//
// All decode failures wrap [ErrMalformed]. Callers treat them as
// "discard this line and keep reading".
package frame
