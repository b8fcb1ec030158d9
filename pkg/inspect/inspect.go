// Package inspect extracts playback duration from synthesized audio.
package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/youpy/go-wav"
)

var ErrEmpty = errors.New("inspect: empty audio")

// Inspector reports the playback duration of an encoded audio buffer.
type Inspector interface {
	Duration(data []byte) (time.Duration, error)
}

// AudioInspector decodes MP3 and RIFF/WAVE payloads.
type AudioInspector struct{}

func (AudioInspector) Duration(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	if isWAV(data) {
		return wavDuration(data)
	}
	return mp3Duration(data)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func wavDuration(data []byte) (time.Duration, error) {
	wavReader := wav.NewReader(bytes.NewReader(data))
	format, err := wavReader.Format()
	if err != nil {
		return 0, fmt.Errorf("inspect: wav format: %w", err)
	}
	if format.ByteRate == 0 {
		return 0, fmt.Errorf("inspect: wav byte rate is zero")
	}
	wavReader = wav.NewReader(bytes.NewReader(data))
	pcm, err := io.ReadAll(wavReader)
	if err != nil {
		return 0, fmt.Errorf("inspect: wav data: %w", err)
	}
	sec := float64(len(pcm)) / float64(format.ByteRate)
	return time.Duration(sec * float64(time.Second)), nil
}

func mp3Duration(data []byte) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("inspect: mp3 decoder: %w", err)
	}
	rate := decoder.SampleRate()
	length := decoder.Length()
	if rate <= 0 || length <= 0 {
		return 0, fmt.Errorf("inspect: mp3 length unknown")
	}
	// go-mp3 always decodes to 16-bit stereo.
	samples := float64(length) / 4
	return time.Duration(samples / float64(rate) * float64(time.Second)), nil
}

// Seconds rounds d to whole seconds, half away from zero.
func Seconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

// Tag formats d as the "{N}s" duration tag used in artifact names.
func Tag(d time.Duration) string {
	return strconv.Itoa(Seconds(d)) + "s"
}
