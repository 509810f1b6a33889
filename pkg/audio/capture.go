package audio

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Capture owns the microphone device and delivers raw 16-bit PCM frames
// through a periodic callback. Frames are fire-and-forget: the callback
// must not block the audio thread.
type Capture struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	log      *slog.Logger
}

// StartCapture opens the default capture device at sampleRate (mono,
// S16LE, 20ms periods) and starts delivering frames to onFrame.
func StartCapture(sampleRate int, onFrame func(pcm []byte), log *slog.Logger) (*Capture, error) {
	if log == nil {
		log = slog.Default()
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			frame := make([]byte, len(pInputSamples))
			copy(frame, pInputSamples)
			onFrame(frame)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return &Capture{malgoCtx: malgoCtx, device: device, log: log}, nil
}

// Stop halts capture and releases the device. Safe to call once.
func (c *Capture) Stop() {
	if c == nil {
		return
	}
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	if c.malgoCtx != nil {
		if err := c.malgoCtx.Uninit(); err != nil {
			c.log.Warn("audio context uninit failed", "err", err)
		}
		c.malgoCtx = nil
	}
}
