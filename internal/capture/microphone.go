package capture

import (
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/mediadevices/pkg/wave"
	"go.uber.org/zap"

	// Registers the microphone adapter with the mediadevices driver manager.
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)

// Microphone pushes fixed-size mono float32 PCM buffers. The channel closes
// when the device stops delivering (error or Close); consumers treat a
// closed channel as a device error for that sensor only.
type Microphone interface {
	Buffers() <-chan []float32
	Close() error
}

// MediaDevicesMicrophone captures audio through the mediadevices stack.
type MediaDevicesMicrophone struct {
	stream mediadevices.MediaStream
	track  *mediadevices.AudioTrack
	out    chan []float32
	logger *zap.SugaredLogger

	closeOnce sync.Once
	done      chan struct{}
	dropped   int
}

// OpenMicrophone opens the default audio input at the requested sample rate
// and starts the delivery goroutine. Buffers are re-chunked to bufferSize
// samples so downstream RMS windows are uniform regardless of what the
// driver hands us.
func OpenMicrophone(sampleRate, bufferSize int, logger *zap.SugaredLogger) (*MediaDevicesMicrophone, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(sampleRate)
			c.ChannelCount = prop.Int(1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no audio tracks available")
	}
	track, ok := tracks[0].(*mediadevices.AudioTrack)
	if !ok {
		tracks[0].Close()
		return nil, fmt.Errorf("unexpected audio track type %T", tracks[0])
	}

	m := &MediaDevicesMicrophone{
		stream: stream,
		track:  track,
		out:    make(chan []float32, 16),
		logger: logger,
		done:   make(chan struct{}),
	}
	go m.deliver(bufferSize)
	return m, nil
}

// Buffers returns the delivery channel.
func (m *MediaDevicesMicrophone) Buffers() <-chan []float32 {
	return m.out
}

// deliver reads chunks from the device and re-chunks them into fixed-size
// mono buffers. The channel send never blocks the device path: a full
// channel drops the buffer.
func (m *MediaDevicesMicrophone) deliver(bufferSize int) {
	defer close(m.out)

	reader := m.track.NewReader(false)
	pending := make([]float32, 0, bufferSize)

	for {
		select {
		case <-m.done:
			return
		default:
		}

		chunk, release, err := reader.Read()
		if err != nil {
			m.logger.Warnw("microphone stream ended", "error", err)
			return
		}

		pending = appendMono(pending, chunk)
		release()

		for len(pending) >= bufferSize {
			buf := make([]float32, bufferSize)
			copy(buf, pending[:bufferSize])
			pending = pending[:copy(pending, pending[bufferSize:])]

			select {
			case m.out <- buf:
			default:
				m.dropped++
				if m.dropped%100 == 1 {
					m.logger.Warnw("audio buffers dropped, consumer too slow", "dropped", m.dropped)
				}
			}
		}
	}
}

// appendMono converts a device chunk to mono float32 samples, averaging
// channels when the driver ignores the mono constraint.
func appendMono(dst []float32, chunk wave.Audio) []float32 {
	switch c := chunk.(type) {
	case *wave.Float32Interleaved:
		ch := c.Size.Channels
		if ch <= 1 {
			return append(dst, c.Data...)
		}
		for i := 0; i+ch <= len(c.Data); i += ch {
			var sum float32
			for j := 0; j < ch; j++ {
				sum += c.Data[i+j]
			}
			dst = append(dst, sum/float32(ch))
		}
		return dst
	case *wave.Int16Interleaved:
		ch := c.Size.Channels
		if ch < 1 {
			return dst
		}
		for i := 0; i+ch <= len(c.Data); i += ch {
			var sum float32
			for j := 0; j < ch; j++ {
				sum += float32(c.Data[i+j]) / 32768
			}
			dst = append(dst, sum/float32(ch))
		}
		return dst
	default:
		// Unsupported sample format; skip the chunk.
		return dst
	}
}

// Close stops the stream and releases the device. Safe to call more than
// once; the fixed teardown order (stop track, close stream) is preserved
// even when one step fails.
func (m *MediaDevicesMicrophone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		if cerr := m.track.Close(); cerr != nil {
			err = fmt.Errorf("stop audio track: %w", cerr)
		}
		for _, t := range m.stream.GetTracks() {
			if t != mediadevices.Track(m.track) {
				t.Close()
			}
		}
	})
	return err
}
