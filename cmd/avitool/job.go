package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"avikit/pkg/avi"
	"avikit/pkg/catalog"
	"avikit/pkg/log"
)

// job describes one mux run.
type job struct {
	Output string `yaml:"output"`

	Video struct {
		Width            uint32  `yaml:"width"`
		Height           uint32  `yaml:"height"`
		FourCC           string  `yaml:"fourcc"`
		FPS              float64 `yaml:"fps"`
		Frames           string  `yaml:"frames"` // Glob of raw frame files.
		KeyframeInterval int     `yaml:"keyframeInterval"`
	} `yaml:"video"`

	Audio *struct {
		File          string `yaml:"file"` // Raw PCM.
		Channels      uint16 `yaml:"channels"`
		BitsPerSample uint16 `yaml:"bitsPerSample"`
		SamplesPerSec uint32 `yaml:"samplesPerSec"`
	} `yaml:"audio"`

	LegacyIndex bool `yaml:"legacyIndex"`
}

func loadJob(path string) (*job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}

	var j job
	if err := yaml.UnmarshalStrict(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	if j.Output == "" {
		return nil, fmt.Errorf("job: output is required")
	}
	if j.Video.Frames == "" {
		return nil, fmt.Errorf("job: video.frames is required")
	}
	if j.Video.KeyframeInterval <= 0 {
		j.Video.KeyframeInterval = 1
	}
	return &j, nil
}

func (j *job) options() avi.Options {
	opts := avi.Options{
		Width:       j.Video.Width,
		Height:      j.Video.Height,
		FourCC:      j.Video.FourCC,
		FPS:         j.Video.FPS,
		LegacyIndex: j.LegacyIndex,
	}
	if a := j.Audio; a != nil {
		opts.Audio = &avi.AudioSpec{
			Channels:      a.Channels,
			BitsPerSample: a.BitsPerSample,
			SamplesPerSec: a.SamplesPerSec,
		}
	}
	return opts
}

func (j *job) run(logger log.ILogger) error {
	framePaths, err := filepath.Glob(j.Video.Frames)
	if err != nil {
		return fmt.Errorf("glob frames: %w", err)
	}
	if len(framePaths) == 0 {
		return fmt.Errorf("no frames match %q", j.Video.Frames)
	}
	sort.Strings(framePaths)

	var audio []byte
	var audioPerFrame int
	if j.Audio != nil {
		if audio, err = os.ReadFile(j.Audio.File); err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		// Interleave roughly one frame's worth of samples per video
		// frame, rounded down to whole blocks.
		bytesPerSec := int(j.Audio.Channels) *
			int(j.Audio.BitsPerSample/8) * int(j.Audio.SamplesPerSec)
		blockAlign := int(j.Audio.Channels) * int(j.Audio.BitsPerSample/8)
		audioPerFrame = int(float64(bytesPerSec) / j.Video.FPS)
		audioPerFrame -= audioPerFrame % blockAlign
	}

	m, err := avi.CreateFile(j.Output, j.options(), logger)
	if err != nil {
		return err
	}

	for i, path := range framePaths {
		frame, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		keyframe := i%j.Video.KeyframeInterval == 0
		if err := m.AddFrame(frame, keyframe); err != nil {
			return fmt.Errorf("add frame %q: %w", path, err)
		}

		if n := audioPerFrame; n > 0 && len(audio) > 0 {
			if n > len(audio) {
				n = len(audio)
			}
			if err := m.AddAudio(audio[:n]); err != nil {
				return fmt.Errorf("add audio: %w", err)
			}
			audio = audio[n:]
		}
	}
	// Whatever samples remain trail the last frame.
	if len(audio) > 0 {
		if err := m.AddAudio(audio); err != nil {
			return fmt.Errorf("add audio: %w", err)
		}
	}

	if err := m.Close(); err != nil {
		return fmt.Errorf("close %q: %w", j.Output, err)
	}
	return nil
}

// scanDir probes every .avi file under dir into the catalog.
// A file that fails to parse is reported and skipped.
func scanDir(cmd *cobra.Command, c *catalog.Catalog, dir string, logger log.ILogger) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".avi") {
			return nil
		}

		r, err := avi.OpenFile(path, logger)
		if err != nil {
			return err
		}
		defer r.Close()

		report, err := r.Probe()
		if err != nil {
			logger.Warn().Src("avitool").Msgf("skipping %q: %v", path, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames\n",
			path, report.Main.TotalFrames)
		return c.Put(path, report)
	})
}
