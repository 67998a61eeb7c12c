// Package segment models chunks of PCM audio and the operations playback
// needs on them: decoding encoded containers, converting between formats,
// splitting into chunks and joining pieces back together.
//
// Decoding and resampling are done with the beep library; containers beep
// cannot read are handed to ffmpeg when it is installed.
package segment
