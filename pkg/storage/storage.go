// Package storage keeps provisioned settings and billboard content documents
// in LittleFS. It handles atomic writes, version checking, and cleanup of
// temporary files.
package storage

import (
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir    = "/config"
	contentDir   = "/billboard"
	settingsFile = "/config/settings.bin"
	contentFile  = "/billboard/content.json"
	tempSuffix   = ".tmp"

	// MaxContentSize bounds a content document read into RAM.
	MaxContentSize = 4096
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSettings = errors.New("invalid settings data")
	ErrContentTooLarge = errors.New("content document too large")
)

// Manager handles persistence using LittleFS. Its methods may be called from
// more than one goroutine.
type Manager struct {
	mu       sync.Mutex
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace  int64
	UsedSpace   int64
	FreeSpace   int64
	HasSettings bool
	ContentSize int64
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	// Try to mount existing filesystem
	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, err
		}
		log.Info().Err(err).Msg("mount failed, formatting flash")
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	if err := m.bootCleanup(); err != nil {
		log.Warn().Err(err).Msg("boot cleanup failed")
	}

	needsWipe, err := m.checkVersion()
	if err != nil {
		log.Debug().Err(err).Msg("settings version check skipped")
		needsWipe = false
	}

	if needsWipe {
		// Settings from another firmware layout are unusable; the user
		// provisions again over the console.
		log.Warn().Msg("settings version mismatch, wiping")
		if err := m.wipeSettings(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	for _, dir := range []string{configDir, contentDir} {
		entries, err := m.readDir(dir)
		if err != nil {
			if isNotExist(err) {
				continue
			}
			return err
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasSuffix(name, tempSuffix) {
				m.fs.Remove(path.Join(dir, name))
			}
		}
	}
	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reads the settings and checks if the version matches.
// Returns true if settings should be wiped.
func (m *Manager) checkVersion() (bool, error) {
	var s config.Settings
	if err := m.loadSettings(&s); err != nil {
		if errors.Is(err, ErrNotFound) {
			// First boot
			return false, nil
		}
		return false, err
	}

	return s.Version != config.CurrentVersion, nil
}

func (m *Manager) wipeSettings() error {
	if err := m.fs.Remove(settingsFile); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// ensureDir creates dir if it doesn't exist.
func (m *Manager) ensureDir(dir string) error {
	if err := m.fs.Mkdir(dir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotExist is the counterpart of isExist for missing entries.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// readFile reads a whole file of at most limit bytes.
func (m *Manager) readFile(filePath string, limit int) ([]byte, error) {
	f, err := m.fs.Open(filePath)
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if len(buf) > limit {
			return nil, ErrContentTooLarge
		}
		if err == io.EOF || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// LoadSettings loads the provisioned settings.
func (m *Manager) LoadSettings(s *config.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadSettings(s)
}

func (m *Manager) loadSettings(s *config.Settings) error {
	buf, err := m.readFile(settingsFile, config.SettingsSize)
	if err != nil {
		if errors.Is(err, ErrContentTooLarge) {
			return ErrInvalidSettings
		}
		return err
	}
	if len(buf) != config.SettingsSize {
		return ErrInvalidSettings
	}

	return s.UnmarshalBinary(buf)
}

// SaveSettings saves the settings atomically.
func (m *Manager) SaveSettings(s *config.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureDir(configDir); err != nil {
		return err
	}

	s.Version = config.CurrentVersion

	data, err := s.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(settingsFile, data)
}

// LoadContent returns the billboard content document.
func (m *Manager) LoadContent() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readFile(contentFile, MaxContentSize)
}

// SaveContent replaces the billboard content document atomically.
func (m *Manager) SaveContent(doc []byte) error {
	if len(doc) > MaxContentSize {
		return ErrContentTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureDir(contentDir); err != nil {
		return err
	}
	return m.atomicWrite(contentFile, doc)
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &Stats{TotalSpace: m.blockDev.Size()}

	if info, err := m.fs.Stat(settingsFile); err == nil {
		stats.HasSettings = true
		stats.UsedSpace += info.Size()
	}
	if info, err := m.fs.Stat(contentFile); err == nil {
		stats.ContentSize = info.Size()
		stats.UsedSpace += info.Size()
	}

	// Each file carries roughly 32 bytes of LittleFS metadata, plus the
	// directory entries.
	stats.UsedSpace += 100
	stats.FreeSpace = stats.TotalSpace - stats.UsedSpace
	return stats, nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// This ensures atomic updates - the original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	// Remove temp file if it exists (from interrupted previous write)
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	// Sync ensures data hits flash
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename doesn't replace
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}

// ForceWipe erases settings and content.
func (m *Manager) ForceWipe() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.wipeSettings(); err != nil {
		return err
	}
	if err := m.fs.Remove(contentFile); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}
