// taskstore.go
package qlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// OnlineRecord is one submission entry in the local store: the task ids of
// the submitted groups and the submission's task name.
type OnlineRecord struct {
	TaskIDs  []string `json:"taskid"`
	TaskName string   `json:"taskname"`
}

// UnmarshalJSON accepts both shapes found in existing stores: a task id
// list, or a bare single id from older writers.
func (r *OnlineRecord) UnmarshalJSON(data []byte) error {
	var probe struct {
		TaskID   json.RawMessage `json:"taskid"`
		TaskName string          `json:"taskname"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	r.TaskName = probe.TaskName
	if len(probe.TaskID) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(probe.TaskID, &list); err == nil {
		r.TaskIDs = list
		return nil
	}
	var single string
	if err := json.Unmarshal(probe.TaskID, &single); err != nil {
		return err
	}
	r.TaskIDs = []string{single}
	return nil
}

// TaskStore persists submission records and finished task results under
// one directory: submissions append to online_info.txt as JSON lines, and
// each finished task gets its own <taskid>.txt file.
type TaskStore struct {
	dir string
	mu  sync.Mutex
}

// NewTaskStore opens a store rooted at dir, defaulting to "online_info"
// under the working directory. The directory is created lazily on first
// write.
func NewTaskStore(dir string) *TaskStore {
	if dir == "" {
		dir = "online_info"
	}
	return &TaskStore{dir: dir}
}

// Dir returns the store's root directory.
func (s *TaskStore) Dir() string { return s.dir }

func (s *TaskStore) ensureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// AppendOnlineInfo appends one submission record as a JSON line.
func (s *TaskStore) AppendOnlineInfo(record OnlineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(s.dir, "online_info.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// LoadAllOnlineInfo reads every submission record. A missing store reads
// as empty, not as an error.
func (s *TaskStore) LoadAllOnlineInfo() ([]OnlineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, "online_info.txt"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []OnlineRecord
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		var record OnlineRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("online_info.txt line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

// WriteTaskInfo stores a finished task's parsed status.
func (s *TaskStore) WriteTaskInfo(taskID string, info *TaskInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, taskID+".txt"), data, 0o644)
}

// LoadTaskInfo reads a stored task status back.
func (s *TaskStore) LoadTaskInfo(taskID string) (*TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, taskID+".txt"))
	if err != nil {
		return nil, err
	}
	var info TaskInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("task info %s: %w", taskID, err)
	}
	return &info, nil
}

// HasTaskInfo reports whether a task already has a stored result.
func (s *TaskStore) HasTaskInfo(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(filepath.Join(s.dir, taskID+".txt"))
	return err == nil
}
