package inputs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
)

// FileInput tails spool files. Every complete line appended to a matching
// file is one message; a trailing line without a newline waits for the next
// Collect.
type FileInput struct {
	plugin.BasePlugin
	paths         []string
	queueName     string
	filePositions map[string]int64
	queue         triggerQueue
	mutex         sync.Mutex
}

// NewFileInput creates a new file input plugin
func NewFileInput(id string) *FileInput {
	return &FileInput{
		BasePlugin:    plugin.NewBasePlugin(id, "File Input", model.InputPluginType),
		queueName:     DefaultQueue,
		filePositions: make(map[string]int64),
	}
}

// Initialize reads paths and the queue name
func (f *FileInput) Initialize() bool {
	f.paths = f.ConfigStringSlice("paths")
	f.queueName = f.ConfigString("queue", DefaultQueue)

	f.SetStatus(model.StatusInitialized)
	return len(f.paths) > 0
}

// Start begins file input operation
func (f *FileInput) Start() bool {
	f.SetStatus(model.StatusRunning)
	return true
}

// Stop halts file input operation. Offsets are kept for a restart.
func (f *FileInput) Stop() bool {
	f.SetStatus(model.StatusStopped)
	return true
}

// Validate requires at least one path
func (f *FileInput) Validate() bool {
	return len(f.ConfigStringSlice("paths")) > 0
}

// Collect reads new lines from every matching file and returns one TRIGGER
// batch per line
func (f *FileInput) Collect() []*model.DataBatch {
	if f.GetStatus() != model.StatusRunning {
		return nil
	}

	for _, path := range f.matchingFiles() {
		if err := f.processFile(path); err != nil {
			f.PublishError(err)
		}
	}

	return f.queue.drain(f.ID())
}

func (f *FileInput) matchingFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range f.paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			f.PublishError(fmt.Errorf("bad path pattern %q: %w", pattern, err))
			continue
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}
	sort.Strings(files)
	return files
}

// processFile queues the complete lines after the remembered offset.
func (f *FileInput) processFile(path string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}

	position := f.filePositions[path]
	if info.Size() < position {
		// Truncated or rotated in place.
		position = 0
	}
	if _, err := file.Seek(position, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", path, err)
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			f.filePositions[path] = position
			return fmt.Errorf("read %s: %w", path, err)
		}
		position += int64(len(line))

		payload := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		msg := newTrigger(f.queueName, payload, map[string]string{
			"transport": "file",
			"path":      path,
		})
		if err := f.queue.push(msg); err != nil {
			f.filePositions[path] = position
			return err
		}
	}

	f.filePositions[path] = position
	return nil
}

// Offset returns the read offset remembered for path.
func (f *FileInput) Offset(path string) int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.filePositions[path]
}
