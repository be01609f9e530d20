// Package check provides system diagnostics (--check mode) and the
// once-per-process encoder capability probe the decision engine uses to
// pick between hardware and software H.264 encoding.
package check

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// VAAPIDevice is the render device the hardware capability probe targets.
const VAAPIDevice = "/dev/dri/renderD128"

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
	ErrNoEncoderWorks  = errors.New("neither hardware nor software H.264 encoding works")
)

// Encoder is the resolved result of the capability probe, consumed by the
// decision engine to pick the encoder and argument set. It's computed
// once per process: the probe spawns real (tiny) ffmpeg encodes, so it isn't
// cheap enough to call per file.
type Encoder struct {
	HardwareAvailable bool
	HardwareDevice    string
	SoftwareAvailable bool
}

// ProbeEncoders runs the round-trip capability tests: a tiny
// VAAPI encode against VAAPIDevice, then a tiny libx264 encode. Either or
// both may fail; the decision engine falls back to libx264 with a faster
// preset when software is the only option that also failed hardware.
func ProbeEncoders() Encoder {
	probeOnce.Do(func() {
		if _, err := os.Stat(VAAPIDevice); err == nil {
			if testVAAPIEncode(VAAPIDevice) {
				probed.HardwareAvailable = true
				probed.HardwareDevice = VAAPIDevice
			}
		}

		probed.SoftwareAvailable = testSoftwareEncode()
	})
	return probed
}

var (
	probeOnce sync.Once
	probed    Encoder
)

// Logger is the minimal logging interface needed by RunCheck.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck runs the interactive --check flow: ffmpeg/ffprobe presence,
// available H.264 encoders, and the hardware/software capability probe.
// Informational only; it does not stop on failure.
func RunCheck(log Logger) {
	log.Info("=== System Check ===")

	checkFfmpeg(log)
	checkH264Encoders(log)

	enc := ProbeEncoders()
	if enc.HardwareAvailable {
		log.Success("VAAPI hardware encode works (%s)", enc.HardwareDevice)
	} else {
		log.Warn("VAAPI hardware encode unavailable")
	}
	if enc.SoftwareAvailable {
		log.Success("libx264 software encode works")
	} else {
		log.Error("libx264 software encode failed")
	}
}

func checkFfmpeg(log Logger) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Error("ffmpeg not found")
		return
	}
	out, err := exec.Command("ffmpeg", "-version").Output()
	if err != nil {
		log.Warn("ffmpeg found but -version failed: %v", err)
		return
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.Index(line, "\n"); idx > 0 {
		line = line[:idx]
	}
	log.Success("ffmpeg: %s", line)
}

func checkH264Encoders(log Logger) {
	log.Info("H.264 encoders:")
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		log.Warn("could not list encoders: %v", err)
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "264") {
			log.Info("  %s", strings.TrimSpace(line))
		}
	}
}

// CheckDeps validates that ffmpeg and ffprobe are present and that at least
// one H.264 encode path (hardware or software) works, aborting at startup
// otherwise (a configuration-environment error, exit 2).
func CheckDeps() (Encoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return Encoder{}, ErrFfmpegNotFound
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return Encoder{}, ErrFfprobeNotFound
	}

	enc := ProbeEncoders()
	if !enc.HardwareAvailable && !enc.SoftwareAvailable {
		return enc, ErrNoEncoderWorks
	}
	return enc, nil
}

func testVAAPIEncode(device string) bool {
	return runSilent("ffmpeg",
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-init_hw_device", "vaapi=va:"+device,
		"-filter_hw_device", "va",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-vf", "format=nv12,hwupload",
		"-c:v", "h264_vaapi", "-qp", "23",
		"-f", "null", "-",
	)
}

func testSoftwareEncode() bool {
	return runSilent("ffmpeg",
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", "libx264", "-crf", "23",
		"-f", "null", "-",
	)
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

