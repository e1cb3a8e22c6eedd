package audio

import "encoding/binary"

// wavHeaderSize is the size of a canonical 44-byte PCM WAV header.
const wavHeaderSize = 44

// EncodeWAV wraps mono little-endian PCM16 in a canonical WAV container.
// Speech APIs that take file uploads want a header even for short utterances.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * 2)

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)
	copy(out[wavHeaderSize:], pcm)
	return out
}

// TrimWAV returns the PCM payload of buf. If buf carries a RIFF/WAVE header
// the data chunk is located and returned; otherwise buf is assumed to already
// be raw PCM and is returned unchanged. TTS services are inconsistent about
// whether they return raw PCM or WAV, so outbound audio always passes through
// here before chunking.
func TrimWAV(buf []byte) []byte {
	if len(buf) < wavHeaderSize || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return buf
	}

	// Walk the chunk list looking for "data"; headers written by real
	// encoders sometimes carry extra chunks (LIST, fact) before it.
	off := 12
	for off+8 <= len(buf) {
		id := string(buf[off : off+4])
		size := int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		if id == "data" {
			start := off + 8
			end := start + size
			if end > len(buf) || size < 0 {
				end = len(buf)
			}
			return buf[start:end]
		}
		off += 8 + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return buf
}

// WAVSampleRate reports the sample rate declared in a WAV header, or 0 if buf
// is not a WAV container.
func WAVSampleRate(buf []byte) int {
	if len(buf) < wavHeaderSize || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return 0
	}
	return int(binary.LittleEndian.Uint32(buf[24:28]))
}
