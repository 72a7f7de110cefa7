package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"calltriage/internal/ports"
)

// FFMPEGDecoder converts one browser audio fragment (webm/ogg/mp4) into WAV
// using an external ffmpeg process fed through stdin.
type FFMPEGDecoder struct {
	command string
}

func NewFFMPEGDecoder(command string) *FFMPEGDecoder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGDecoder{command: command}
}

// Available reports whether the ffmpeg binary can be found.
func (d *FFMPEGDecoder) Available() error {
	if _, err := exec.LookPath(d.command); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

func (d *FFMPEGDecoder) Decode(ctx context.Context, chunk []byte, cfg ports.DecodeConfig) ([]byte, error) {
	if len(chunk) == 0 {
		return nil, errors.New("empty audio chunk")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-f", "wav",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(chunk)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if detail := trimStderr(stderr.String()); detail != "" {
			return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no audio")
	}
	return stdout.Bytes(), nil
}

func trimStderr(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
