// task.go
package qlite

import (
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/theapemachine/errnie"
)

// Task group status values reported by the remote execution service.
const (
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
	TaskStatusRunning = "running"
)

var errTransport = errors.New("transport error")

// CloudConfig holds the connection settings for the remote execution
// service, normally loaded from originq_cloud_config.json in the working
// directory.
type CloudConfig struct {
	APIToken      string
	SubmitURL     string
	QueryURL      string
	TaskGroupSize int
	SavePath      string
}

// LoadCloudConfig reads originq_cloud_config.json from the working
// directory. apitoken, submit_url, and query_url are required;
// task_group_size and savepath have defaults.
func LoadCloudConfig() (*CloudConfig, error) {
	v := viper.New()
	v.SetConfigName("originq_cloud_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.SetDefault("task_group_size", 200)
	v.SetDefault("savepath", "online_info")

	if err := v.ReadInConfig(); err != nil {
		return nil, configErrorf("cannot read cloud config: %v", err)
	}

	config := &CloudConfig{
		APIToken:      v.GetString("apitoken"),
		SubmitURL:     v.GetString("submit_url"),
		QueryURL:      v.GetString("query_url"),
		TaskGroupSize: v.GetInt("task_group_size"),
		SavePath:      v.GetString("savepath"),
	}
	if config.APIToken == "" || config.SubmitURL == "" || config.QueryURL == "" {
		return nil, configErrorf("cloud config needs apitoken, submit_url and query_url")
	}
	if config.TaskGroupSize < 1 {
		return nil, configErrorf("task_group_size %d must be positive", config.TaskGroupSize)
	}
	return config, nil
}

// SubmitOptions carries the per-submission knobs of the remote service.
type SubmitOptions struct {
	TaskName         string
	MachineType      int
	ChipID           int
	Shots            int
	CircuitOptimize  bool
	MeasurementAmend bool
	AutoMapping      bool
}

// NewSubmitOptions returns the service defaults with a fresh task name.
func NewSubmitOptions() *SubmitOptions {
	return &SubmitOptions{
		TaskName:        uuid.NewString(),
		MachineType:     5,
		ChipID:          72,
		Shots:           1000,
		CircuitOptimize: true,
	}
}

// TaskResult is one circuit's outcome payload: parallel bitstring keys and
// occurrence values.
type TaskResult struct {
	Key   []string  `json:"key"`
	Value []float64 `json:"value"`
}

// Counts converts the payload to rounded counts.
func (r TaskResult) Counts() Counts {
	counts := make(Counts, len(r.Key))
	for i, key := range r.Key {
		if i < len(r.Value) {
			counts[key] = uint64(r.Value[i] + 0.5)
		}
	}
	return counts
}

// Probabilities converts the payload to a normalized distribution.
func (r TaskResult) Probabilities() map[string]float64 {
	total := 0.0
	for _, v := range r.Value {
		total += v
	}
	probs := make(map[string]float64, len(r.Key))
	for i, key := range r.Key {
		if i < len(r.Value) && total > 0 {
			probs[key] = r.Value[i] / total
		}
	}
	return probs
}

// TaskInfo is the parsed status of one task or task group.
type TaskInfo struct {
	TaskID   string       `json:"taskid"`
	TaskName string       `json:"taskname"`
	Status   string       `json:"status"`
	Result   []TaskResult `json:"result,omitempty"`
	ErrCode  string       `json:"errcode,omitempty"`
	ErrInfo  string       `json:"errinfo,omitempty"`
}

/*
QCloudClient submits compiled circuits to a remote execution service and
queries their status. Submissions over the configured group size split
into chunks; polling goes through a token-bucket rate limiter and a
circuit breaker so a struggling endpoint is not hammered.

Example:
    config, err := qlite.LoadCloudConfig()
    if err != nil {
        log.Fatal(err)
    }
    client := qlite.NewQCloudClient(config)
    ids, err := client.SubmitTask(ctx, []string{circuitText}, nil)
    info, err := client.QueryTaskSync(ctx, ids, 2*time.Second, time.Minute)
*/
type QCloudClient struct {
	config  *CloudConfig
	client  *http.Client
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *RetryPolicy
	metrics *Metrics
	store   *TaskStore
}

// NewQCloudClient builds a client around a validated configuration.
func NewQCloudClient(config *CloudConfig) *QCloudClient {
	metrics := NewMetrics()
	limiter := NewRateLimiter(5, time.Second)
	limiter.Observe(metrics)

	return &QCloudClient{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		breaker: NewCircuitBreaker(5, 30*time.Second, 2),
		retry: &RetryPolicy{
			MaxAttempts: 5,
			Strategy:    &FixedDelay{Delay: time.Second},
			Filter:      func(err error) bool { return errors.Is(err, errTransport) },
		},
		metrics: metrics,
		store:   NewTaskStore(config.SavePath),
	}
}

// Metrics returns the client's counters.
func (c *QCloudClient) Metrics() *Metrics { return c.metrics }

// Store returns the client's local task persistence.
func (c *QCloudClient) Store() *TaskStore { return c.store }

type submitRequest struct {
	QMachineType    int      `json:"qmachineType"`
	QProgArr        []string `json:"qprogArr"`
	TaskFrom        int      `json:"taskFrom"`
	ChipID          int      `json:"chipId"`
	Shot            int      `json:"shot"`
	IsAmend         int      `json:"isAmend"`
	MappingFlag     int      `json:"mappingFlag"`
	CircuitOptimize int      `json:"circuitOptimization"`
	CompileLevel    int      `json:"compileLevel"`
}

type submitResponse struct {
	Obj struct {
		TaskID string `json:"taskId"`
	} `json:"obj"`
}

type queryRequest struct {
	APIKey string `json:"apiKey"`
	TaskID string `json:"taskId"`
}

type queryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Obj     struct {
		QcodeTaskNewVo struct {
			TaskResultList []struct {
				RTaskID      string          `json:"rTaskId"`
				TaskName     string          `json:"taskName"`
				TaskState    string          `json:"taskState"`
				TaskResult   string          `json:"taskResult"`
				ErrorDetail  json.RawMessage `json:"errorDetail"`
				ErrorMessage json.RawMessage `json:"errorMessage"`
			} `json:"taskResultList"`
		} `json:"qcodeTaskNewVo"`
	} `json:"obj"`
}

/*
SubmitTask sends circuits to the remote service and returns the task ids
of the submitted groups. Circuit lists over the configured group size are
chunked, one task id per chunk, with the chunk index appended to the task
name. The submission record is appended to the local store.
*/
func (c *QCloudClient) SubmitTask(ctx context.Context, circuits []string, opts *SubmitOptions) ([]string, error) {
	if len(circuits) == 0 {
		return nil, configErrorf("no circuits to submit")
	}
	if opts == nil {
		opts = NewSubmitOptions()
	}
	if opts.TaskName == "" {
		opts.TaskName = uuid.NewString()
	}

	var taskIDs []string
	for i := 0; i*c.config.TaskGroupSize < len(circuits); i++ {
		lo := i * c.config.TaskGroupSize
		hi := min(lo+c.config.TaskGroupSize, len(circuits))

		name := opts.TaskName
		if len(circuits) > c.config.TaskGroupSize {
			name = fmt.Sprintf("%s_%d", opts.TaskName, i)
		}
		taskID, err := c.submitGroup(ctx, circuits[lo:hi], opts)
		if err != nil {
			return nil, fmt.Errorf("submit group %q: %w", name, err)
		}
		taskIDs = append(taskIDs, taskID)
	}

	if err := c.store.AppendOnlineInfo(OnlineRecord{TaskIDs: taskIDs, TaskName: opts.TaskName}); err != nil {
		return nil, err
	}
	errnie.Info(
		"SubmitTask - name %v, circuits %v, groups %v",
		opts.TaskName,
		len(circuits),
		len(taskIDs),
	)
	return taskIDs, nil
}

func (c *QCloudClient) submitGroup(ctx context.Context, circuits []string, opts *SubmitOptions) (string, error) {
	body := submitRequest{
		QMachineType:    opts.MachineType,
		QProgArr:        circuits,
		TaskFrom:        4,
		ChipID:          opts.ChipID,
		Shot:            opts.Shots,
		CompileLevel:    3,
		CircuitOptimize: boolFlag(opts.CircuitOptimize),
		IsAmend:         boolFlag(opts.MeasurementAmend),
		MappingFlag:     boolFlag(opts.AutoMapping),
	}

	var data []byte
	err := c.retry.Execute(ctx, func() error {
		var postErr error
		data, postErr = c.post(ctx, c.config.SubmitURL, body)
		return postErr
	})
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Obj.TaskID == "" {
		return "", fmt.Errorf("submit response body is corrupted: %s", data)
	}
	return resp.Obj.TaskID, nil
}

// QueryTask asks the service for the status of a single task id. The call
// goes through the circuit breaker.
func (c *QCloudClient) QueryTask(ctx context.Context, taskID string) (*TaskInfo, error) {
	if taskID == "" {
		return nil, configErrorf("empty task id")
	}

	var info *TaskInfo
	err := c.breaker.Execute(func() error {
		var data []byte
		err := c.retry.Execute(ctx, func() error {
			var postErr error
			data, postErr = c.post(ctx, c.config.QueryURL, queryRequest{
				APIKey: c.config.APIToken,
				TaskID: taskID,
			})
			return postErr
		})
		if err != nil {
			return err
		}
		info, err = parseQueryResponse(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// QueryGroup merges the statuses of a task group: any failed member fails
// the group, otherwise any running member keeps it running, otherwise the
// group succeeded and the results concatenate in submission order.
func (c *QCloudClient) QueryGroup(ctx context.Context, taskIDs []string) (*TaskInfo, error) {
	if len(taskIDs) == 0 {
		return nil, configErrorf("empty task id list")
	}

	group := &TaskInfo{Status: TaskStatusSuccess}
	for _, id := range taskIDs {
		info, err := c.QueryTask(ctx, id)
		if err != nil {
			return nil, err
		}
		switch info.Status {
		case TaskStatusFailed:
			return &TaskInfo{
				TaskID:  info.TaskID,
				Status:  TaskStatusFailed,
				ErrCode: info.ErrCode,
				ErrInfo: info.ErrInfo,
			}, nil
		case TaskStatusRunning:
			group.Status = TaskStatusRunning
		case TaskStatusSuccess:
			if group.Status == TaskStatusSuccess {
				group.Result = append(group.Result, info.Result...)
			}
		}
	}
	return group, nil
}

/*
QueryTaskSync polls a task group until it leaves the running state or the
timeout passes. Polls pace themselves through the rate limiter; a failed
group returns the TaskInfo together with an error carrying the remote
error detail.
*/
func (c *QCloudClient) QueryTaskSync(ctx context.Context, taskIDs []string, interval, timeout time.Duration) (*TaskInfo, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("task %v did not finish within %v", taskIDs, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		info, err := c.QueryGroup(ctx, taskIDs)
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				continue
			}
			return nil, err
		}
		switch info.Status {
		case TaskStatusRunning:
			continue
		case TaskStatusFailed:
			return info, fmt.Errorf("task failed remotely: errcode=%s errinfo=%s", info.ErrCode, info.ErrInfo)
		default:
			return info, nil
		}
	}
}

/*
WatchGroup polls like QueryTaskSync while recording every member's status
transitions in the group's ledger, so observers of the TaskGroup see the
batch advance chunk by chunk. A failed chunk ends the watch with that
chunk's TaskInfo and an error carrying the remote detail.
*/
func (c *QCloudClient) WatchGroup(ctx context.Context, group *TaskGroup, interval, timeout time.Duration) (*TaskInfo, error) {
	if group == nil || len(group.TaskIDs) == 0 {
		return nil, configErrorf("empty task group")
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)

poll:
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("group %s did not finish within %v", group.ID, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		merged := &TaskInfo{TaskName: group.ID, Status: TaskStatusSuccess}
		for _, id := range group.TaskIDs {
			info, err := c.QueryTask(ctx, id)
			if err != nil {
				if errors.Is(err, ErrCircuitOpen) {
					continue poll
				}
				return nil, err
			}
			group.UpdateStatus(id, info.Status)
			switch info.Status {
			case TaskStatusFailed:
				return info, fmt.Errorf("task failed remotely: errcode=%s errinfo=%s", info.ErrCode, info.ErrInfo)
			case TaskStatusRunning:
				merged.Status = TaskStatusRunning
			case TaskStatusSuccess:
				if merged.Status == TaskStatusSuccess {
					merged.Result = append(merged.Result, info.Result...)
				}
			}
		}
		if merged.Status == TaskStatusSuccess {
			return merged, nil
		}
	}
}

// QueryAllTasks walks the local submission records, queries every task
// without a stored result, and persists finished ones. It returns the
// finished and total record counts.
func (c *QCloudClient) QueryAllTasks(ctx context.Context) (finished, total int, err error) {
	records, err := c.store.LoadAllOnlineInfo()
	if err != nil {
		return 0, 0, err
	}

	for _, record := range records {
		done := true
		for _, id := range record.TaskIDs {
			if c.store.HasTaskInfo(id) {
				continue
			}
			info, queryErr := c.QueryTask(ctx, id)
			if queryErr != nil {
				return finished, len(records), queryErr
			}
			if info.Status == TaskStatusSuccess || info.Status == TaskStatusFailed {
				if writeErr := c.store.WriteTaskInfo(id, info); writeErr != nil {
					return finished, len(records), writeErr
				}
			} else {
				done = false
			}
		}
		if done {
			finished++
		}
	}
	return finished, len(records), nil
}

// post sends one JSON request with the service's auth headers and returns
// the decompressed response body. Transport failures wrap errTransport so
// the retry policy can tell them from protocol errors.
func (c *QCloudClient) post(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("origin-language", "en")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Authorization", "oqcs_auth="+c.config.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d: %s", resp.StatusCode, data)
	}

	// The service compresses large result payloads with bzip2.
	if bytes.HasPrefix(data, []byte("BZ")) {
		data, err = io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
	}
	return data, nil
}

// parseQueryResponse maps the service's response envelope onto a TaskInfo.
// taskState "3" is success, "4" is failed, everything else counts as still
// running.
func parseQueryResponse(data []byte) (*TaskInfo, error) {
	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("query response body is corrupted: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("query task error: %s", resp.Message)
	}
	if len(resp.Obj.QcodeTaskNewVo.TaskResultList) == 0 {
		return nil, fmt.Errorf("query response carries no task result")
	}

	entry := resp.Obj.QcodeTaskNewVo.TaskResultList[0]
	info := &TaskInfo{
		TaskID:   entry.RTaskID,
		TaskName: entry.TaskName,
	}

	switch entry.TaskState {
	case "3":
		info.Status = TaskStatusSuccess
		results, err := parseTaskResultPayload([]byte(entry.TaskResult))
		if err != nil {
			return nil, fmt.Errorf("parse task result %q: %w", entry.TaskResult, err)
		}
		info.Result = results
	case "4":
		info.Status = TaskStatusFailed
		info.ErrCode = rawToString(entry.ErrorDetail)
		info.ErrInfo = rawToString(entry.ErrorMessage)
	default:
		info.Status = TaskStatusRunning
	}
	return info, nil
}

// parseTaskResultPayload accepts both payload shapes the service emits: a
// list of per-circuit results, or a bare single result.
func parseTaskResultPayload(data []byte) ([]TaskResult, error) {
	var list []TaskResult
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single TaskResult
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []TaskResult{single}, nil
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
