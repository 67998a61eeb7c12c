// Package queue holds audio segments waiting for an output device.
// Producers never block; consumers wait with a context.
package queue
