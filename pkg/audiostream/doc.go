// Package audiostream plays intermittent audio byte streams.
//
// Callers hand it audio whenever they have some, either complete encoded
// files or raw PCM. Each piece is decoded, converted to the output format
// and queued. Pieces play back to back and the device is fed silence while
// the queue is empty, so late arrivals do not stall or click the output.
//
//	audiostream.PlayAudio(mp3Bytes)
//	audiostream.PlayRawAudio(pcm, audiostream.WithFrameRate(16000))
//	audiostream.Wait(ctx)
//
// The package-level functions use a lazily created default Player
// configured from EASYAUDIOSTREAM_* environment variables. Use New for an
// explicitly configured instance.
package audiostream
