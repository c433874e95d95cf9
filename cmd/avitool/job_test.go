package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"avikit/pkg/avi"
	"avikit/pkg/avi/riffio"
	"avikit/pkg/log"
)

func writeTestFrames(t *testing.T, dir string, count, size int) {
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame%03d.raw", i))
		data := bytes.Repeat([]byte{byte(i)}, size)
		require.NoError(t, os.WriteFile(path, data, 0o600))
	}
}

func TestLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output: out.avi
video:
  width: 640
  height: 480
  fourcc: I420
  fps: 30
  frames: "frames/*.raw"
  keyframeInterval: 10
audio:
  file: audio.pcm
  channels: 2
  bitsPerSample: 16
  samplesPerSec: 44100
legacyIndex: true
`), 0o600))

	j, err := loadJob(path)
	require.NoError(t, err)
	require.Equal(t, "out.avi", j.Output)
	require.Equal(t, uint32(640), j.Video.Width)
	require.Equal(t, float64(30), j.Video.FPS)
	require.Equal(t, 10, j.Video.KeyframeInterval)
	require.Equal(t, uint16(2), j.Audio.Channels)
	require.True(t, j.LegacyIndex)

	opts := j.options()
	require.Equal(t, "I420", opts.FourCC)
	require.Equal(t, uint32(44100), opts.Audio.SamplesPerSec)
	require.True(t, opts.LegacyIndex)
}

func TestLoadJobErrors(t *testing.T) {
	cases := map[string]string{
		"missingOutput": "video:\n  frames: \"*.raw\"\n",
		"missingFrames": "output: out.avi\n",
		"unknownField":  "output: out.avi\nbogus: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "job.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := loadJob(path)
			require.Error(t, err)
		})
	}
}

func TestJobRun(t *testing.T) {
	dir := t.TempDir()
	writeTestFrames(t, dir, 30, 512)

	audio := bytes.Repeat([]byte{9}, 8000)
	audioPath := filepath.Join(dir, "audio.pcm")
	require.NoError(t, os.WriteFile(audioPath, audio, 0o600))

	output := filepath.Join(dir, "out.avi")
	jobPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(fmt.Sprintf(`
output: %q
video:
  width: 64
  height: 48
  fourcc: I420
  fps: 30
  frames: %q
  keyframeInterval: 10
audio:
  file: %q
  channels: 1
  bitsPerSample: 16
  samplesPerSec: 8000
`, output, filepath.Join(dir, "*.raw"), audioPath)), 0o600))

	j, err := loadJob(jobPath)
	require.NoError(t, err)
	require.NoError(t, j.run(log.NewMockLogger()))

	r, err := avi.OpenFile(output, nil)
	require.NoError(t, err)
	defer r.Close()

	report, err := r.Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(30), report.Main.TotalFrames)
	require.Equal(t, 30, report.VideoChunks)
	require.Equal(t, uint32(2), report.Main.Streams)

	// All PCM bytes must land in the file.
	var audioBytes uint32
	for _, s := range report.Streams {
		if s.Type == riffio.CC("auds") {
			audioBytes = s.Length
		}
	}
	require.Equal(t, uint32(8000), audioBytes)
}

func TestJobRunNoFrames(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(fmt.Sprintf(`
output: %q
video:
  fps: 30
  frames: %q
`, filepath.Join(dir, "out.avi"), filepath.Join(dir, "*.raw"))), 0o600))

	j, err := loadJob(jobPath)
	require.NoError(t, err)
	require.Error(t, j.run(log.NewMockLogger()))
}
