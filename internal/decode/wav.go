// Package decode implements the minimal PCM WAV reader that pairs with
// the fixture generator's own writer: the external decoder contract
// (spec §6) is satisfied here only for the linear 16-bit PCM WAV
// format this repository itself produces, not general audio files.
package decode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cartomix/vinylmind/internal/types"
)

// WAV reads a mono or interleaved 16-bit PCM WAV file into a PCMBuffer.
// Samples are normalized to [-1, 1]. Malformed input surfaces
// types.DecodingFailed.
func WAV(path string) (types.PCMBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.PCMBuffer{}, types.DecodingFailed(fmt.Sprintf("open %s: %v", path, err))
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return types.PCMBuffer{}, types.DecodingFailed("truncated RIFF header")
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return types.PCMBuffer{}, types.DecodingFailed("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []int16
		sawFmt        bool
		sawData       bool
	)

	for {
		var chunkID [4]byte
		var chunkSize uint32
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			break
		}
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return types.PCMBuffer{}, types.DecodingFailed("truncated chunk header")
		}

		switch string(chunkID[:]) {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return types.PCMBuffer{}, types.DecodingFailed("truncated fmt chunk")
			}
			if len(body) < 16 {
				return types.PCMBuffer{}, types.DecodingFailed("fmt chunk too small")
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			sawFmt = true

		case "data":
			if !sawFmt {
				return types.PCMBuffer{}, types.DecodingFailed("data chunk before fmt chunk")
			}
			if bitsPerSample != 16 {
				return types.PCMBuffer{}, types.DecodingFailed("unsupported bit depth")
			}
			n := int(chunkSize) / 2
			pcm = make([]int16, n)
			if err := binary.Read(r, binary.LittleEndian, pcm); err != nil {
				return types.PCMBuffer{}, types.DecodingFailed("truncated data chunk")
			}
			if chunkSize%2 == 1 {
				r.Discard(1)
			}
			sawData = true

		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return types.PCMBuffer{}, types.DecodingFailed("truncated chunk body")
			}
			if chunkSize%2 == 1 {
				r.Discard(1)
			}
		}
	}

	if !sawFmt || !sawData {
		return types.PCMBuffer{}, types.DecodingFailed("missing fmt or data chunk")
	}
	if channels < 1 {
		return types.PCMBuffer{}, types.DecodingFailed("invalid channel count")
	}

	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}

	return types.PCMBuffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
