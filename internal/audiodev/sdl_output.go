// Package audiodev implements the device output backend (spec §4.10): it
// pulls blocks from a graph.Server at a steady rate and queues them to the
// platform audio device, grounded in the teacher's SDL2 queued-audio output
// path (fyne_ui.go's audioDev/queueFrameAudio).
package audiodev

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"sonicgraph/internal/debug"
	"sonicgraph/internal/serr"
)

// blockSource is the subset of graph.Server's surface this package depends
// on, so tests can substitute a fake without dragging in a real Server.
type blockSource interface {
	GetBlock(out [][]float32, channels int) error
}

// SDLOutput drives a blockSource into an SDL2 queued audio device. It mirrors
// the teacher's throttled queueFrameAudio: audio is only queued while the
// device's internal queue has room, so a stalled pull loop never grows the
// queue unbounded.
type SDLOutput struct {
	dev        sdl.AudioDeviceID
	channels   int
	blockSize  int
	log        *debug.Logger
	interleave []byte

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Open initializes SDL2 audio and opens a device at sampleRate with the
// given channel count and block size (spec §4.10: "float32 interleaved PCM").
func Open(sampleRate, channels, blockSize int, log *debug.Logger) (*SDLOutput, error) {
	if err := sdl.Init(sdl.INIT_AUDIO); err != nil {
		return nil, serr.Wrap(serr.IO, err, "audiodev: sdl init")
	}

	spec := sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_F32,
		Channels: uint8(channels),
		Samples:  uint16(blockSize),
	}
	dev, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		sdl.Quit()
		return nil, serr.Wrap(serr.IO, err, "audiodev: open device")
	}
	sdl.PauseAudioDevice(dev, false)

	return &SDLOutput{
		dev:        dev,
		channels:   channels,
		blockSize:  blockSize,
		log:        log,
		interleave: make([]byte, blockSize*channels*4),
	}, nil
}

// Close pauses and closes the device and tears down SDL2's audio subsystem.
func (o *SDLOutput) Close() {
	o.Stop()
	sdl.PauseAudioDevice(o.dev, true)
	sdl.CloseAudioDevice(o.dev)
	sdl.QuitSubSystem(sdl.INIT_AUDIO)
}

// Run launches a goroutine that pulls blocks from src and queues them at
// roughly one block per blockSize/sampleRate seconds, throttled the way the
// teacher's queueFrameAudio is: skip a push if the device already has more
// than 4 blocks queued, rather than blocking or growing unbounded.
func (o *SDLOutput) Run(src blockSource, sampleRate int) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.stop = make(chan struct{})
	o.mu.Unlock()

	period := time.Duration(float64(o.blockSize) / float64(sampleRate) * float64(time.Second))
	buf := make([][]float32, o.channels)
	for i := range buf {
		buf[i] = make([]float32, o.blockSize)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-o.stop:
				return
			case <-ticker.C:
				if err := src.GetBlock(buf, o.channels); err != nil {
					if o.log != nil {
						o.log.LogDevicef(debug.LogLevelError, "get_block: %v", err)
					}
					continue
				}
				o.push(buf)
			}
		}
	}()
}

// Stop halts the pull loop started by Run. Safe to call even if Run was
// never called or has already stopped.
func (o *SDLOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	close(o.stop)
	o.mu.Unlock()
	o.wg.Wait()
	o.mu.Lock()
}

// push interleaves buf (channel-major) into o.interleave and queues it,
// dropping the block if the device queue is already deep (spec §4.10
// "bounded latency over completeness").
func (o *SDLOutput) push(buf [][]float32) {
	queued := sdl.GetQueuedAudioSize(o.dev)
	if queued > uint32(len(o.interleave))*4 {
		if o.log != nil {
			o.log.LogDevicef(debug.LogLevelWarning, "queue depth %d exceeds threshold, dropping block", queued)
		}
		return
	}

	frames := len(buf[0])
	j := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < o.channels; ch++ {
			bits := math.Float32bits(buf[ch][i])
			binary.LittleEndian.PutUint32(o.interleave[j:j+4], bits)
			j += 4
		}
	}

	if err := sdl.QueueAudio(o.dev, o.interleave); err != nil && o.log != nil {
		o.log.LogDevicef(debug.LogLevelError, "queue audio: %v", err)
	}
}
