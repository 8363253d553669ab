package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
)

// Surface receives finished frames.
type Surface interface {
	Present(img *image.RGBA) error
}

// PNGSurface writes every frame to Path, replacing the previous one.
type PNGSurface struct {
	Path string
}

func (s PNGSurface) Present(img *image.RGBA) error {
	if dir := filepath.Dir(s.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode plot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}

// MemorySurface keeps the most recent frame.
type MemorySurface struct {
	mu     sync.Mutex
	last   *image.RGBA
	frames int
}

func (s *MemorySurface) Present(img *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = img
	s.frames++
	return nil
}

func (s *MemorySurface) Last() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *MemorySurface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
