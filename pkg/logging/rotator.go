package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SequentialRotator is an io.Writer that rolls the active file over to
// <name>.<n>.log once it grows past maxSize.
type SequentialRotator struct {
	filename   string
	maxSize    int64 // bytes
	maxAge     int   // days
	maxBackups int
	mu         sync.Mutex
	file       *os.File
	size       int64
}

func NewSequentialRotator(filename string, maxSizeMB, maxAge, maxBackups int) *SequentialRotator {
	return &SequentialRotator{
		filename:   filename,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxAge:     maxAge,
		maxBackups: maxBackups,
	}
}

func (r *SequentialRotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.maxSize > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Sync lets the rotator be used directly as a zapcore.WriteSyncer.
func (r *SequentialRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Sync()
}

func (r *SequentialRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

func (r *SequentialRotator) openFile() error {
	if err := os.MkdirAll(filepath.Dir(r.filename), 0755); err != nil {
		return err
	}

	r.size = 0
	if info, err := os.Stat(r.filename); err == nil {
		r.size = info.Size()
	}

	file, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	r.file = file
	return nil
}

func (r *SequentialRotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}

	base := strings.TrimSuffix(r.filename, ".log")
	rotatedName := fmt.Sprintf("%s.%d.log", base, r.nextSequence())
	if err := os.Rename(r.filename, rotatedName); err != nil {
		return err
	}

	r.cleanupOldFiles()
	return r.openFile()
}

type rotatedFile struct {
	path    string
	modTime time.Time
	seq     int
}

// rotatedFiles lists <base>.<n>.log siblings, highest sequence first.
func (r *SequentialRotator) rotatedFiles() []rotatedFile {
	dir := filepath.Dir(r.filename)
	base := strings.TrimSuffix(filepath.Base(r.filename), ".log")

	matches, err := filepath.Glob(filepath.Join(dir, base+".*.log"))
	if err != nil {
		return nil
	}

	files := make([]rotatedFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		parts := strings.Split(filepath.Base(path), ".")
		if len(parts) < 3 {
			continue
		}
		seq, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{path: path, modTime: info.ModTime(), seq: seq})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].seq > files[j].seq
	})
	return files
}

func (r *SequentialRotator) nextSequence() int {
	files := r.rotatedFiles()
	if len(files) == 0 {
		return 1
	}
	return files[0].seq + 1
}

func (r *SequentialRotator) cleanupOldFiles() {
	files := r.rotatedFiles()

	if r.maxBackups > 0 && len(files) > r.maxBackups {
		for _, f := range files[r.maxBackups:] {
			if err := os.Remove(f.path); err != nil {
				log.Println("Failed to remove log file: ", err)
			}
		}
		files = files[:r.maxBackups]
	}

	if r.maxAge > 0 {
		cutoff := time.Now().AddDate(0, 0, -r.maxAge)
		for _, f := range files {
			if f.modTime.Before(cutoff) {
				if err := os.Remove(f.path); err != nil {
					log.Println("Failed to remove log file: ", err)
				}
			}
		}
	}
}
