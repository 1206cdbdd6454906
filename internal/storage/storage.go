package storage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/imaging"
)

var ErrInvalidName = errors.New("invalid file name")

// FileStore owns the upload, audio and report directories under the static
// root. Every write goes through a temp file and a rename.
type FileStore struct {
	staticDir string
	uploadDir string
	audioDir  string
	reportDir string
}

func New(cfg config.StorageConfig) (*FileStore, error) {
	s := &FileStore{
		staticDir: filepath.Clean(cfg.StaticDir),
		uploadDir: filepath.Clean(cfg.UploadDir),
		audioDir:  filepath.Clean(cfg.AudioDir),
		reportDir: filepath.Clean(cfg.ReportDir),
	}
	for _, dir := range []string{s.staticDir, s.uploadDir, s.audioDir, s.reportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return s, nil
}

// ImagePath is where SaveImage stores the image for key.
func (s *FileStore) ImagePath(key string) string {
	return filepath.Join(s.uploadDir, key+".jpg")
}

// SaveImage stores img as an RGB JPEG at ImagePath(key).
func (s *FileStore) SaveImage(key string, img image.Image) (string, error) {
	if SecureFilename(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, key)
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	path := s.ImagePath(key)
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ErrNameExhausted is returned when every disambiguated upload name for a
// second is taken.
var ErrNameExhausted = errors.New("no free upload name")

const maxUploadSuffix = 99

// SaveUpload stores a raw image upload as uploaded_<timestamp>.png. Uploads
// within the same second get a _N suffix instead of replacing each other.
func (s *FileStore) SaveUpload(at time.Time, r io.Reader) (string, error) {
	path, err := s.reserveUpload(record.KeyFor(at))
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// reserveUpload claims the first free upload name by creating it exclusively.
func (s *FileStore) reserveUpload(base string) (string, error) {
	for n := 0; n <= maxUploadSuffix; n++ {
		name := base
		if n > 0 {
			name = record.DisambiguatedKey(base, n)
		}
		path := filepath.Join(s.uploadDir, "uploaded_"+name+".png")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserving %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("reserving %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: uploaded_%s", ErrNameExhausted, base)
}

// SaveAudio stores a voice note for a record as <key>_<sanitized name>.
func (s *FileStore) SaveAudio(key, filename string, r io.Reader) (string, error) {
	name := SecureFilename(filename)
	if name == "" || SecureFilename(key) != key || key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, key+"_"+filename)
	}
	path := filepath.Join(s.audioDir, key+"_"+name)
	if err := writeAtomic(path, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileStore) ReportDir() string {
	return s.reportDir
}

// PublicURL maps a stored path to its /static URL. Paths outside the static
// root map to "".
func (s *FileStore) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(s.staticDir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return "/static/" + filepath.ToSlash(rel)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place. On error nothing exists at path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeAtomic(path string, perm os.FileMode, fill func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// SecureFilename reduces name to a safe ASCII base name: path separators
// and other characters become underscores, leading dots and underscores are
// dropped. It can return "".
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(name), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r > 127:
			// dropped
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}
