// Package evidence persists captured evidence (JPEG stills, WAV audio clips)
// to local storage and forwards a bounded number of items per incident to
// the remote incident tracker.
package evidence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const jpegQuality = 85

// Store writes evidence files into a local directory with unique
// timestamped names. Uploads never delete local copies; the directory is the
// durable record.
type Store struct {
	dir      string
	archiver Archiver
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewStore creates the evidence directory if needed. archiver may be nil.
func NewStore(dir string, archiver Archiver, logger *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir %s: %w", dir, err)
	}
	return &Store{
		dir:      dir,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// filename builds evidence/<prefix>_<timestamp>_<id>.<ext>. The short random
// id keeps names unique when two captures land in the same second.
func (s *Store) filename(prefix, ext string) string {
	ts := s.now().Format("20060102_150405")
	id := uuid.New().String()[:8]
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s%s", prefix, ts, id, ext))
}

// SaveImage encodes a frame as JPEG. Returns the path of the written file.
func (s *Store) SaveImage(prefix string, img image.Image) (string, error) {
	path := s.filename(prefix, ".jpg")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image evidence: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode image evidence: %w", err)
	}
	s.archive(path)
	return path, nil
}

// SaveAudioWAV writes the accumulated PCM buffers as one single-channel
// 32-bit float WAV file, preserving buffer arrival order.
func (s *Store) SaveAudioWAV(prefix string, buffers [][]float32, sampleRate int) (string, error) {
	path := s.filename(prefix, ".wav")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio evidence: %w", err)
	}
	defer f.Close()

	if err := writeWAV(f, buffers, sampleRate); err != nil {
		return "", fmt.Errorf("write audio evidence: %w", err)
	}
	s.archive(path)
	return path, nil
}

// archive mirrors a saved file off-site, best effort. Archival failures
// never affect detection or the upload budget.
func (s *Store) archive(path string) {
	if s.archiver == nil {
		return
	}
	go func() {
		if err := s.archiver.Archive(path); err != nil {
			s.logger.Warnw("evidence archival failed", "path", path, "error", err)
		}
	}()
}

// writeWAV emits a minimal RIFF/WAVE container: IEEE-float format (3),
// mono, 32 bits per sample.
func writeWAV(f *os.File, buffers [][]float32, sampleRate int) error {
	var samples int
	for _, b := range buffers {
		samples += len(b)
	}
	dataSize := samples * 4

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+dataSize))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(3)) // IEEE float
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&hdr, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(sampleRate*4)) // byte rate
	binary.Write(&hdr, binary.LittleEndian, uint16(4))            // block align
	binary.Write(&hdr, binary.LittleEndian, uint16(32))           // bits per sample
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, uint32(dataSize))

	if _, err := f.Write(hdr.Bytes()); err != nil {
		return err
	}

	pcm := make([]byte, 0, dataSize)
	for _, buf := range buffers {
		for _, sample := range buf {
			pcm = binary.LittleEndian.AppendUint32(pcm, math.Float32bits(sample))
		}
	}
	_, err := f.Write(pcm)
	return err
}
