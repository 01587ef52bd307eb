// Package alert delivers user-visible alerts when a recipe alarm fires.
//
// This file implements the audible half: a sine-wave alarm played through
// the host's audio device via oto. The beep pattern (500ms on, 200ms off,
// 500ms on) mirrors the vibration waveform of the original mobile alarm.
package alert

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Audio output parameters.
const (
	// SampleRate is the playback sample rate in Hz.
	SampleRate = 44100
	// ChannelCount is the number of audio channels (mono).
	ChannelCount = 1
	// beepFrequency is the alarm tone frequency in Hz.
	beepFrequency = 880.0
	// beepAmplitude scales the 16-bit sample range.
	beepAmplitude = 0.6
)

// Sound plays the audible alarm. Safe for concurrent use; Stop interrupts
// an in-flight alarm from any goroutine.
type Sound struct {
	ctx    *oto.Context
	mu     sync.Mutex
	active *oto.Player // currently playing, nil when idle
}

// NewSound initializes the system audio context. Returns an error if the
// audio device is unavailable; callers degrade to a no-op sound then.
func NewSound() (*Sound, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	slog.Debug("audio alarm initialized", "rate", SampleRate, "channels", ChannelCount)
	return &Sound{ctx: ctx}, nil
}

// PlayAlarm plays the alarm pattern synchronously. Blocks until playback
// finishes or Stop is called.
func (s *Sound) PlayAlarm() error {
	pcm := alarmPattern()
	player := s.ctx.NewPlayer(bytes.NewReader(pcm))

	s.mu.Lock()
	if s.active != nil {
		// A previous alarm is still sounding; replace it.
		s.active.Pause()
	}
	s.active = player
	s.mu.Unlock()

	player.Play()
	slog.Debug("audio alarm playing", "bytes", len(pcm))

	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	s.mu.Lock()
	if s.active == player {
		s.active = nil
	}
	s.mu.Unlock()

	return player.Close()
}

// Stop interrupts the currently playing alarm, if any. Safe to call when
// nothing is playing.
func (s *Sound) Stop() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.Pause()
		slog.Debug("audio alarm interrupted")
	}
}

// alarmPattern renders the beep/pause/beep waveform as signed 16-bit LE PCM.
func alarmPattern() []byte {
	var buf bytes.Buffer
	writeBeep(&buf, 500*time.Millisecond)
	writeSilence(&buf, 200*time.Millisecond)
	writeBeep(&buf, 500*time.Millisecond)
	return buf.Bytes()
}

func writeBeep(buf *bytes.Buffer, d time.Duration) {
	samples := int(float64(SampleRate) * d.Seconds())
	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * beepFrequency * float64(i) / SampleRate)
		sample := int16(v * beepAmplitude * math.MaxInt16)
		binary.Write(buf, binary.LittleEndian, sample)
	}
}

func writeSilence(buf *bytes.Buffer, d time.Duration) {
	samples := int(float64(SampleRate) * d.Seconds())
	for i := 0; i < samples; i++ {
		binary.Write(buf, binary.LittleEndian, int16(0))
	}
}
