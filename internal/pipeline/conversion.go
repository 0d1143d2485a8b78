// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lelloman/quentin/internal/domain"
)

// Converter invokes an external converter for one source file. The shipped
// implementation shells out to ffmpeg; tests substitute a fake.
type Converter interface {
	Convert(ctx context.Context, sourcePath, destPath string, output domain.OutputConstraints) error
}

// FFmpegConverter shells out to the ffmpeg binary on PATH, mirroring the
// teacher's external-program execution idiom: build an argv, run it under a
// cancellable context, surface stderr on failure.
type FFmpegConverter struct {
	BinaryPath string
}

func NewFFmpegConverter() *FFmpegConverter {
	return &FFmpegConverter{BinaryPath: "ffmpeg"}
}

func (f *FFmpegConverter) Convert(ctx context.Context, sourcePath, destPath string, output domain.OutputConstraints) error {
	args := []string{"-y", "-i", sourcePath}
	if output.Audio != nil {
		if output.Audio.Format != "" {
			args = append(args, "-c:a", ffmpegAudioCodec(output.Audio.Format))
		}
		if output.Audio.BitrateKbps > 0 {
			args = append(args, "-b:a", strconv.Itoa(output.Audio.BitrateKbps)+"k")
		}
	}
	if output.Video != nil && output.Video.Target != "" {
		args = append(args, "-vf", "scale="+output.Video.Target)
	}
	args = append(args, destPath)

	bin := f.BinaryPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg convert %s -> %s: %w: %s", sourcePath, destPath, err, out)
	}
	return nil
}

func ffmpegAudioCodec(format string) string {
	switch format {
	case "flac":
		return "flac"
	case "mp3":
		return "libmp3lame"
	case "aac", "m4a":
		return "aac"
	case "opus":
		return "libopus"
	default:
		return format
	}
}

// PassthroughConverter copies the source file unchanged. Every ticket's
// downloaded payload passes through the conversion pool per §4.1's legal
// transition table (Downloading -> Converting -> Placing is unconditional),
// even when the ticket carries no output constraints to convert against.
type PassthroughConverter struct{}

func (PassthroughConverter) Convert(ctx context.Context, sourcePath, destPath string, output domain.OutputConstraints) error {
	in, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return err
	}
	return out.Close()
}

// DispatchingConverter runs ffmpeg when the job carries output constraints
// and falls back to a verbatim copy otherwise, so a single ConversionPool
// serves both converted and pass-through tickets.
type DispatchingConverter struct {
	Ffmpeg Converter
}

func (d DispatchingConverter) Convert(ctx context.Context, sourcePath, destPath string, output domain.OutputConstraints) error {
	if output.Audio != nil || output.Video != nil {
		return d.Ffmpeg.Convert(ctx, sourcePath, destPath, output)
	}
	return PassthroughConverter{}.Convert(ctx, sourcePath, destPath, output)
}

// ConversionJob is one ticket's worth of per-item conversions.
type ConversionJob struct {
	TicketID string
	Priority uint16
	Items    []domain.ConversionItem
	DestDir  string
	Output   domain.OutputConstraints

	// OnItemStarted/OnItemDone/OnFailed/OnCompleted let the orchestrator
	// emit §4.9's ConversionStarted/Progress/Completed audit events and
	// drive the ticket's state transitions without the pool depending on
	// the store or event bus directly.
	OnItemStarted func(idx int, item domain.ConversionItem)
	OnItemDone    func(idx int, item domain.ConversionItem, destPath string)
	OnFailed      func(idx int, item domain.ConversionItem, err error)
	OnCompleted   func(destPaths []string)
}

// ConversionPool runs conversion jobs one item at a time per ticket
// (parallelism is across tickets, via the pool's worker count), per §4.9:
// on any item failure the remaining items for that ticket are abandoned.
type ConversionPool struct {
	pool      *Pool
	converter Converter
}

func NewConversionPool(maxConcurrent int, converter Converter, registerer prometheus.Registerer) *ConversionPool {
	return &ConversionPool{
		pool:      NewPool("conversion", maxConcurrent, registerer),
		converter: converter,
	}
}

func (c *ConversionPool) Metrics() domain.PoolMetrics { return c.pool.Metrics() }

// Submit runs every item in Items sequentially, in order, since §4.9
// requires the first failure to abandon the rest of the ticket's items.
func (c *ConversionPool) Submit(job ConversionJob) {
	c.pool.Submit(Job{
		TicketID: job.TicketID,
		Priority: job.Priority,
		Run: func(ctx context.Context) {
			destPaths := make([]string, 0, len(job.Items))
			for idx, item := range job.Items {
				if job.OnItemStarted != nil {
					job.OnItemStarted(idx, item)
				}
				destPath := filepath.Join(job.DestDir, item.DestName)
				if err := c.converter.Convert(ctx, item.SourcePath, destPath, job.Output); err != nil {
					c.pool.MarkFailed()
					if job.OnFailed != nil {
						job.OnFailed(idx, item, err)
					}
					return
				}
				destPaths = append(destPaths, destPath)
				if job.OnItemDone != nil {
					job.OnItemDone(idx, item, destPath)
				}
			}
			c.pool.MarkProcessed()
			if job.OnCompleted != nil {
				job.OnCompleted(destPaths)
			}
		},
	})
}
