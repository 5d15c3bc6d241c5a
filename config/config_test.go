package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/config"
	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "experiment.yml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	exp := config.Default()
	assert.Equal(t, "default", exp.ID)
	assert.Equal(t, "Weekday", exp.DayOfWeek)
	assert.Equal(t, "05:00:00", exp.DayStart)
	assert.Equal(t, "22:00:00", exp.DayEnd)
	assert.Equal(t, 900, exp.TimeIncrement)
	assert.Equal(t, engine.DEFAULT_WINDOW_SECONDS, exp.WindowSeconds)
	assert.InDelta(t, engine.DEFAULT_BETA, exp.Beta, 1e-9)
	assert.Equal(t, []engine.Preference{engine.PreferenceMinTime}, exp.PreferenceList())
	assert.Equal(t, "manhattan", exp.Provider.Mode)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
experiment_id: buffalo-weekday
day_of_week: Weekday
day_start: "06:00:00"
day_end: "09:00:00"
time_increment: 1800
window_seconds: 1800
beta: 120
preferences: [min_time, min_walk]
enable_transfers: true
provider:
  mode: manhattan
  speed_mps: 1.2
`)
	exp, err := config.Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "buffalo-weekday", exp.ID)
	assert.Equal(t, 1800, exp.WindowSeconds)
	assert.InDelta(t, 120, exp.Beta, 1e-9)
	assert.True(t, exp.EnableTransfers)
	assert.Equal(t, []engine.Preference{engine.PreferenceMinTime, engine.PreferenceMinWalk}, exp.PreferenceList())
	assert.InDelta(t, 1.2, exp.Provider.SpeedMPS, 1e-9)

	times, err := exp.QueryTimes()
	assert.NoError(t, err)
	// 06:00到09:00每30分钟一个时刻，含两端
	assert.Len(t, times, 7)
	assert.Equal(t, 6*3600, times[0])
	assert.Equal(t, 9*3600, times[len(times)-1])
}

func TestLoadAppliesDefaults(t *testing.T) {
	exp, err := config.Load(writeConfig(t, "experiment_id: minimal\n"))
	assert.NoError(t, err)
	assert.Equal(t, "Weekday", exp.DayOfWeek)
	assert.Equal(t, engine.DEFAULT_WINDOW_SECONDS, exp.WindowSeconds)
	assert.Equal(t, []string{"min_time"}, exp.Preferences)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":       "day_of_week: Weekday\n",
		"bad day":          "experiment_id: x\nday_of_week: Holiday\n",
		"bad preference":   "experiment_id: x\npreferences: [fastest]\n",
		"bad provider":     "experiment_id: x\nprovider:\n  mode: teleport\n",
		"negative window":  "experiment_id: x\nwindow_seconds: -5\n",
		"bad clock":        "experiment_id: x\nday_start: \"25:99\"\n",
		"end before start": "experiment_id: x\nday_start: \"10:00:00\"\nday_end: \"05:00:00\"\n",
		"not yaml":         "{::::\n",
	}
	for name, content := range cases {
		_, err := config.Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
