package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Timeout bounds a single inspector invocation.
const Timeout = 30 * time.Second

// ErrorKind closes the set of ways a probe can fail, per the error taxonomy.
type ErrorKind int

const (
	ProbeToolMissing ErrorKind = iota
	ProbeNonzeroExit
	MalformedJson
	ProbeTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ProbeToolMissing:
		return "ProbeToolMissing"
	case ProbeNonzeroExit:
		return "ProbeNonzeroExit"
	case MalformedJson:
		return "MalformedJson"
	case ProbeTimeout:
		return "ProbeTimeout"
	default:
		return "unknown"
	}
}

// Error is returned by [Run] on any failure. Callers use errors.As to
// branch on Kind instead of matching message strings.
type Error struct {
	Kind   ErrorKind
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe %s: %s: %s", e.Path, e.Kind, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes one ffprobe JSON call against path and returns the parsed
// result. Synchronous and deterministic; bounded by [Timeout].
func Run(ctx context.Context, path string) (*Probe, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: ProbeTimeout, Path: path, Err: ctx.Err()}
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return nil, &Error{Kind: ProbeToolMissing, Path: path, Err: err}
		}
		return nil, &Error{Kind: ProbeNonzeroExit, Path: path, Stderr: stderr.String(), Err: err}
	}

	result, err := ParseJSON(out)
	if err != nil {
		return nil, &Error{Kind: MalformedJson, Path: path, Err: err}
	}
	result.Format.Filename = path
	return result, nil
}

// ParseJSON converts raw ffprobe JSON output into a Probe. Exported so tests
// can exercise decision logic without a real ffprobe binary.
func ParseJSON(data []byte) (*Probe, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildProbe(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	PixFmt         string            `json:"pix_fmt"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorSpace     string            `json:"color_space"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	BitRate        string            `json:"bit_rate"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
	SideDataList   []ffprobeSideData `json:"side_data_list"`
}

func buildProbe(raw *ffprobeOutput) *Probe {
	p := &Probe{Format: convertFormat(&raw.Format)}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			v := convertVideo(s)
			p.Streams = append(p.Streams, Stream{Kind: KindVideo, Video: &v})
		case "audio":
			a := convertAudio(s)
			p.Streams = append(p.Streams, Stream{Kind: KindAudio, Audio: &a})
		case "subtitle":
			sub := convertSubtitle(s)
			p.Streams = append(p.Streams, Stream{Kind: KindSubtitle, Subtitle: &sub})
		}
	}
	return p
}

func convertFormat(f *ffprobeFormat) FormatInfo {
	return FormatInfo{
		Filename:   f.Filename,
		FormatName: f.FormatName,
		Duration:   parseFloat(f.Duration),
		Size:       parseInt64(f.Size),
		BitRate:    parseInt64(f.BitRate),
	}
}

func convertVideo(s *ffprobeStream) VideoStream {
	hasDOVI := false
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "DOVI configuration record" {
			hasDOVI = true
			break
		}
	}
	return VideoStream{
		Index:          s.Index,
		Codec:          s.CodecName,
		Width:          s.Width,
		Height:         s.Height,
		PixFmt:         s.PixFmt,
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		ColorSpace:     s.ColorSpace,
		HasDOVI:        hasDOVI,
		IsAttachedPic:  s.Disposition["attached_pic"] == 1,
	}
}

func convertAudio(s *ffprobeStream) AudioStream {
	return AudioStream{
		Index:         s.Index,
		Codec:         s.CodecName,
		Channels:      s.Channels,
		ChannelLayout: s.ChannelLayout,
		BitRate:       parseInt64(s.BitRate),
		Language:      s.Tags["language"],
		Title:         s.Tags["title"],
		IsDefault:     s.Disposition["default"] == 1,
	}
}

func convertSubtitle(s *ffprobeStream) SubtitleStream {
	return SubtitleStream{
		Index:    s.Index,
		Codec:    s.CodecName,
		Language: s.Tags["language"],
		Forced:   s.Disposition["forced"] == 1,
	}
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
