// Package audio describes the audio payloads produced by the synthesis
// backends and knows how to wrap raw PCM in a WAV container.
package audio

import "time"

// Encodings reported by the backends.
const (
	EncodingMP3      = "mp3"
	EncodingLinear16 = "linear16"  // PCM signed 16-bit little-endian
	EncodingFloat32  = "pcm_f32le" // PCM IEEE float 32-bit little-endian
	EncodingUnknown  = ""
)

// Containers reported by the backends.
const (
	ContainerMP3 = "mp3"
	ContainerWAV = "wav"
	ContainerRaw = "raw"
)

// Format describes the bytes a backend writes.
type Format struct {
	Container  string
	Encoding   string
	SampleRate int
	Channels   int
	BitDepth   int
}

// IsPCM reports whether the samples are uncompressed.
func (f Format) IsPCM() bool {
	return f.Encoding == EncodingLinear16 || f.Encoding == EncodingFloat32
}

// BytesPerSecond returns the PCM byte rate, or 0 for compressed or
// incompletely described formats.
func (f Format) BytesPerSecond() int {
	if !f.IsPCM() || f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth <= 0 {
		return 0
	}
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Duration estimates the playback time of n bytes. Compressed formats
// report zero.
func (f Format) Duration(n int) time.Duration {
	rate := f.BytesPerSecond()
	if rate == 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// MIMEType returns the media type of the container.
func (f Format) MIMEType() string {
	switch f.Container {
	case ContainerMP3:
		return "audio/mpeg"
	case ContainerWAV:
		return "audio/wav"
	case ContainerRaw:
		if f.IsPCM() {
			return "audio/pcm"
		}
	}
	return "application/octet-stream"
}
