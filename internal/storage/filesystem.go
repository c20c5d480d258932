package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type FileEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store keeps uploaded source files and generated exports on disk. Sources
// live under sources/<project>/, exports under exports/<project>/.
type Store struct {
	sourcePath string
	exportPath string
}

func NewStore(sourcePath, exportPath string) (*Store, error) {
	for _, p := range []string{sourcePath, exportPath} {
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", p, err)
		}
	}
	return &Store{sourcePath: sourcePath, exportPath: exportPath}, nil
}

// SaveSource writes the original upload of a project and returns its
// relative path.
func (s *Store) SaveSource(projectID, name string, data []byte) (string, error) {
	return write(s.sourcePath, filepath.Join(projectID, cleanName(name)), data)
}

// ReadSource returns a previously saved upload.
func (s *Store) ReadSource(projectID, name string) ([]byte, error) {
	full, err := safeJoin(s.sourcePath, filepath.Join(projectID, cleanName(name)))
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// SaveExport writes a generated artifact and returns its relative path.
func (s *Store) SaveExport(projectID, name string, data []byte) (string, error) {
	return write(s.exportPath, filepath.Join(projectID, cleanName(name)), data)
}

// ExportFile resolves a relative export path for serving.
func (s *Store) ExportFile(rel string) (string, error) {
	full, err := safeJoin(s.exportPath, rel)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}

func (s *Store) RemoveExport(rel string) error {
	full, err := safeJoin(s.exportPath, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveProject deletes every stored file of a project.
func (s *Store) RemoveProject(projectID string) error {
	for _, base := range []string{s.sourcePath, s.exportPath} {
		dir, err := safeJoin(base, projectID)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// ListExports returns the artifacts of a project, newest first.
func (s *Store) ListExports(projectID string) ([]*FileEntry, error) {
	entries, err := listDirectory(s.exportPath, projectID)
	if os.IsNotExist(err) {
		return []*FileEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ModTime.After(entries[j].ModTime) })
	return entries, nil
}

func listDirectory(basePath, relativePath string) ([]*FileEntry, error) {
	fullPath, err := safeJoin(basePath, relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	result := []*FileEntry{}
	for _, entry := range entries {
		// Skip hidden files and partial writes
		if strings.HasPrefix(entry.Name(), ".") || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, &FileEntry{
			Name:    entry.Name(),
			Path:    filepath.Join(relativePath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return result, nil
}

func write(base, rel string, data []byte) (string, error) {
	full, err := safeJoin(base, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return rel, nil
}

// safeJoin joins rel onto base and refuses paths escaping base.
func safeJoin(base, rel string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(base, rel))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return absFull, nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
