package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	wavHeaderSize    = 44
	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	wavFormatFloat32 = 3
)

// WriteWAV writes pcm wrapped in a canonical 44-byte RIFF/WAVE header.
// Only linear16 and pcm_f32le encodings are accepted.
func WriteWAV(w io.Writer, f Format, pcm []byte) error {
	var tag uint16
	switch f.Encoding {
	case EncodingLinear16:
		tag = wavFormatPCM
	case EncodingFloat32:
		tag = wavFormatFloat32
	default:
		return fmt.Errorf("audio: wav: unsupported encoding %q", f.Encoding)
	}
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitDepth <= 0 {
		return fmt.Errorf("audio: wav: incomplete format %+v", f)
	}

	blockAlign := f.Channels * f.BitDepth / 8
	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(wavHeaderSize-8+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], tag)
	binary.LittleEndian.PutUint16(header[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(f.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(f.BitDepth))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("audio: wav: write header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: wav: write data: %w", err)
	}
	return nil
}
