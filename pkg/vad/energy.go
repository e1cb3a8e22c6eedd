package vad

import "fmt"

// EnergyEngine creates threshold-based energy detectors. It is stateless and
// safe for concurrent use.
type EnergyEngine struct{}

var _ Engine = EnergyEngine{}

// NewDetector implements Engine.
func (EnergyEngine) NewDetector(cfg Config) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &energyDetector{
		cfg:        cfg,
		frameBytes: cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
	}, nil
}

// energyDetector classifies frames by mean absolute amplitude and applies the
// start/end hysteresis described in the package documentation.
type energyDetector struct {
	cfg        Config
	frameBytes int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

func (d *energyDetector) ProcessFrame(frame []byte) (Event, error) {
	if len(frame) != d.frameBytes {
		return Event{}, fmt.Errorf("vad: frame is %d bytes, want %d", len(frame), d.frameBytes)
	}

	energy := meanAbsAmplitude(frame)
	isSpeech := energy > d.cfg.EnergyThreshold

	ev := Event{Energy: energy}

	if d.inSpeech {
		if isSpeech {
			d.silenceCount = 0
			ev.Type = SpeechContinue
			return ev, nil
		}
		d.silenceCount++
		if d.silenceCount >= d.cfg.SilenceFrames {
			d.inSpeech = false
			d.silenceCount = 0
			ev.Type = SpeechEnd
			return ev, nil
		}
		// Hangover: a short pause is still part of the utterance.
		ev.Type = SpeechContinue
		return ev, nil
	}

	if isSpeech {
		d.speechCount++
		if d.speechCount >= d.cfg.MinSpeechFrames {
			d.inSpeech = true
			d.speechCount = 0
			ev.Type = SpeechStart
			return ev, nil
		}
	} else {
		d.speechCount = 0
	}
	ev.Type = Silence
	return ev, nil
}

func (d *energyDetector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

// meanAbsAmplitude computes the mean absolute value of little-endian int16
// samples. Returns 0 for an empty frame.
func meanAbsAmplitude(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < samples; i++ {
		s := int64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return float64(sum) / float64(samples)
}
