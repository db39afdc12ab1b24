package allure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_AllPassed_UsesResultWindow(t *testing.T) {
	s := Summarize([]File{
		{Name: "a-result.json", Data: []byte(`{"status":"passed","start":1700000000000,"stop":1700000005000}`)},
		{Name: "b-result.json", Data: []byte(`{"status":"passed","start":1699999990000,"stop":1700000009000,"steps":[{"status":"passed"}]}`)},
		{Name: "environment.properties", Data: []byte("stand=dev")},
	})

	assert.Equal(t, StatusPassed, s.Status)
	require.NotNil(t, s.Start)
	require.NotNil(t, s.Stop)
	assert.Equal(t, time.UnixMilli(1699999990000).UTC(), *s.Start)
	assert.Equal(t, time.UnixMilli(1700000009000).UTC(), *s.Stop)
}

func TestSummarize_ContainerWindowWins(t *testing.T) {
	s := Summarize([]File{
		{Name: "a-result.json", Data: []byte(`{"status":"passed","start":5000,"stop":6000}`)},
		{Name: "x-container.json", Data: []byte(`{"start":"1000","stop":9000}`)},
	})

	require.NotNil(t, s.Start)
	assert.Equal(t, int64(1000), s.Start.UnixMilli())
	assert.Equal(t, int64(9000), s.Stop.UnixMilli())
}

func TestSummarize_NestedFailure(t *testing.T) {
	cases := map[string]string{
		"nested step": `{"status":"passed","steps":[{"status":"passed","steps":[{"status":"broken"}]}]}`,
		"before":      `{"status":"passed","befores":[{"status":"failed"}]}`,
		"after step":  `{"status":"passed","afters":[{"status":"passed","steps":[{"status":"skipped"}]}]}`,
		"top level":   `{"status":"failed"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := Summarize([]File{{Name: "r-result.json", Data: []byte(body)}})
			assert.Equal(t, StatusFailed, s.Status)
			assert.Equal(t, []string{"r-result.json"}, s.FailedFiles)
		})
	}
}

func TestSummarize_InvalidResultFails(t *testing.T) {
	s := Summarize([]File{{Name: "r-result.json", Data: []byte(`not json`)}})
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, []string{"r-result.json"}, s.InvalidFiles)
	assert.Nil(t, s.Start)
}

func TestSummarize_NoResults(t *testing.T) {
	s := Summarize([]File{{Name: "index.html", Data: []byte("<html/>")}})
	assert.Equal(t, StatusPassed, s.Status)
	assert.Nil(t, s.Start)
	assert.Nil(t, s.Stop)
}

func TestExtractStand(t *testing.T) {
	assert.Equal(t, "test4", ExtractStand([]byte(`{"stand": "test4"}`)))
	assert.Equal(t, "stage", ExtractStand([]byte("# comment\nbrowser=chrome\nstand = stage\n")))
	assert.Equal(t, "qa", ExtractStand([]byte("env=qa\nenvironment=\n")))
	assert.Equal(t, "prod", ExtractStand([]byte("stand_name=prod\nenv=qa")))
	assert.Equal(t, "", ExtractStand([]byte("browser=chrome")))
	assert.Equal(t, "", ExtractStand(nil))
}
