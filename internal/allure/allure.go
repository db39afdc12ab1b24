// Package allure summarises uploaded Allure result files into run metadata.
package allure

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// File name suffixes and keys of the Allure result format.
const (
	ResultSuffix    = "result.json"
	ContainerSuffix = "container.json"
	EnvironmentFile = "environment.properties"

	StatusPassed = "passed"
	StatusFailed = "fail"
)

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// Summary is what a set of result files says about the run.
type Summary struct {
	Status string
	Start  *time.Time
	Stop   *time.Time
	// InvalidFiles lists result files that did not contain a JSON object.
	InvalidFiles []string
	// FailedFiles lists result files with at least one non-passed status.
	FailedFiles []string
}

// Summarize inspects result and container files. The run passes unless a
// result, step or fixture reports another status, or a result file is
// unreadable. The time window comes from the container file when present,
// otherwise from the earliest start and latest stop of the results.
func Summarize(files []File) Summary {
	s := Summary{Status: StatusPassed}

	var starts, stops []int64
	var containerStart, containerStop *int64

	for _, f := range files {
		switch {
		case strings.HasSuffix(f.Name, ResultSuffix):
			data, ok := parseObject(f.Data)
			if !ok {
				s.Status = StatusFailed
				s.InvalidFiles = append(s.InvalidFiles, f.Name)
				continue
			}
			if resultFailed(data) {
				s.Status = StatusFailed
				s.FailedFiles = append(s.FailedFiles, f.Name)
			}
			if v, ok := millis(data["start"]); ok {
				starts = append(starts, v)
			}
			if v, ok := millis(data["stop"]); ok {
				stops = append(stops, v)
			}

		case strings.HasSuffix(f.Name, ContainerSuffix):
			data, ok := parseObject(f.Data)
			if !ok {
				continue
			}
			if v, ok := millis(data["start"]); ok {
				containerStart = &v
			}
			if v, ok := millis(data["stop"]); ok {
				containerStop = &v
			}
		}
	}

	if containerStart == nil && len(starts) > 0 {
		v := minOf(starts)
		containerStart = &v
	}
	if containerStop == nil && len(stops) > 0 {
		v := maxOf(stops)
		containerStop = &v
	}
	s.Start = toTime(containerStart)
	s.Stop = toTime(containerStop)
	return s
}

func parseObject(data []byte) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func statusFailed(v interface{}) bool {
	status := cast.ToString(v)
	return status != "" && strings.ToLower(status) != StatusPassed
}

func stepsFailed(v interface{}) bool {
	steps, ok := v.([]interface{})
	if !ok {
		return false
	}
	for _, raw := range steps {
		step, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if statusFailed(step["status"]) || stepsFailed(step["steps"]) {
			return true
		}
	}
	return false
}

func resultFailed(data map[string]interface{}) bool {
	if statusFailed(data["status"]) || stepsFailed(data["steps"]) {
		return true
	}
	for _, section := range []string{"befores", "afters"} {
		if stepsFailed(data[section]) {
			return true
		}
	}
	return false
}

func millis(v interface{}) (int64, bool) {
	if v == nil {
		return 0, false
	}
	n, err := cast.ToInt64E(v)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func toTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func minOf(values []int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// standKeys are tried in order.
var standKeys = []string{"stand", "stand_name", "environment", "env"}

// ExtractStand reads the stand name from an environment file in JSON or
// key=value form. It returns "" when none of the known keys is set.
func ExtractStand(content []byte) string {
	props := parseEnvironment(content)
	for _, key := range standKeys {
		if v := strings.TrimSpace(props[key]); v != "" {
			return v
		}
	}
	return ""
}

func parseEnvironment(content []byte) map[string]string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if obj, ok := parseObject(content); ok && len(obj) > 0 {
		props := make(map[string]string, len(obj))
		for k, v := range obj {
			props[k] = cast.ToString(v)
		}
		return props
	}

	props := make(map[string]string)
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props
}
