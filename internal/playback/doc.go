// Package playback turns queued audio segments into sound.
//
// Every backend implements Manager. Play enqueues and returns immediately;
// a single pump goroutine per manager, started on the first Play, moves
// audio from the queue to the output. Output can be an oto device fed from
// a PCM ring buffer, a PortAudio stream (build tag portaudio), an ffplay
// subprocess reading a pipe, or a system player run once per batch.
package playback
