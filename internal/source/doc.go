// Package source opens the byte streams canmon reads frame lines from.
//
// A [Source] is an io.ReadCloser with two extra expectations: a Read may
// return zero bytes with a nil error when nothing arrived within a short
// timeout, and Close makes any Read in progress return promptly. A serial
// port, a regular file, a pipe, and a replayed capture all qualify.
package source
