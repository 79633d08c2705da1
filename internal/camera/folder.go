package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// FolderDevice is a camera backed by a directory that an external capture
// tool writes frames into. The newest decodable image is the live frame.
type FolderDevice struct {
	dir    string
	logger *log.Logger

	mu    sync.Mutex
	inUse bool
}

// NewFolderDevice creates a device for dir.
func NewFolderDevice(dir string, logger *log.Logger) *FolderDevice {
	if logger == nil {
		logger = log.Default()
	}
	return &FolderDevice{dir: filepath.Clean(dir), logger: logger}
}

// List reports the folder as a single device if it exists.
func (d *FolderDevice) List(ctx context.Context) ([]DeviceInfo, error) {
	info, err := os.Stat(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat camera folder: %w", err)
	}
	if !info.IsDir() {
		return nil, nil
	}
	return []DeviceInfo{{ID: d.dir, Label: filepath.Base(d.dir)}}, nil
}

// Open starts watching the folder. Only one stream may be open at a time.
func (d *FolderDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.DeviceID != "" && c.DeviceID != d.dir {
		return nil, fmt.Errorf("device %q: %w", c.DeviceID, ErrConstraint)
	}
	if _, err := os.ReadDir(d.dir); err != nil {
		return nil, fmt.Errorf("open camera folder: %w", err)
	}

	d.mu.Lock()
	if d.inUse {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.inUse = true
	d.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.releaseSlot()
		return nil, fmt.Errorf("create folder watcher: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		watcher.Close()
		d.releaseSlot()
		return nil, fmt.Errorf("watch camera folder: %w", err)
	}

	s := &folderStream{
		device:  d,
		watcher: watcher,
		done:    make(chan struct{}),
		minW:    c.MinWidth,
		minH:    c.MinHeight,
	}
	s.loadLatest()
	go s.watch()

	return s, nil
}

func (d *FolderDevice) releaseSlot() {
	d.mu.Lock()
	d.inUse = false
	d.mu.Unlock()
}

type folderStream struct {
	device  *FolderDevice
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
	minW    int
	minH    int

	mu    sync.RWMutex
	frame image.Image
}

// Frame returns the latest frame once one has been decoded.
func (s *folderStream) Frame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil || s.frame.Bounds().Empty() {
		return nil, false
	}
	return s.frame, true
}

// Close stops the watcher and frees the device.
func (s *folderStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.device.releaseSlot()
	})
	return err
}

func (s *folderStream) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isFrameFile(event.Name) {
				// Partial writes fail to decode; the next Write event retries.
				s.load(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.device.logger.Printf("camera: folder watch error: %v", err)
		}
	}
}

// loadLatest decodes the most recently modified frame already in the folder.
func (s *folderStream) loadLatest() {
	entries, err := os.ReadDir(s.device.dir)
	if err != nil {
		return
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !isFrameFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest != "" {
		s.load(filepath.Join(s.device.dir, newest))
	}
}

func (s *folderStream) load(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return
	}
	b := img.Bounds()
	if b.Dx() < s.minW || b.Dy() < s.minH {
		return
	}

	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

func isFrameFile(name string) bool {
	return frameExtensions[strings.ToLower(filepath.Ext(name))]
}
