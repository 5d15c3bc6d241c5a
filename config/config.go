// Package config 实验配置的读取与校验
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

// ProviderConfig 外部步行距离服务配置
// 显式注入引擎，核心逻辑不读环境变量
type ProviderConfig struct {
	Mode     string  `yaml:"mode" validate:"omitempty,oneof=manhattan"`
	SpeedMPS float64 `yaml:"speed_mps" validate:"omitempty,gt=0"`
	APIKey   string  `yaml:"api_key"`
}

// Experiment 一次可达性实验的全部参数
type Experiment struct {
	ID        string `yaml:"experiment_id" validate:"required"`
	DayOfWeek string `yaml:"day_of_week" validate:"omitempty,oneof=Weekday Weekend"`

	DayStart      string `yaml:"day_start"`      // "HH:MM:SS"
	DayEnd        string `yaml:"day_end"`        // "HH:MM:SS"
	TimeIncrement int    `yaml:"time_increment"` // 秒
	WindowSeconds int    `yaml:"window_seconds" validate:"omitempty,gt=0"`

	Beta        float64  `yaml:"beta" validate:"omitempty,gt=0"`
	Preferences []string `yaml:"preferences" validate:"omitempty,dive,oneof=min_time min_walk"`

	EnableTransfers     bool `yaml:"enable_transfers"`
	MaxTransferWalkTime int  `yaml:"max_transfer_walk_time" validate:"omitempty,gt=0"` // 秒

	Provider ProviderConfig `yaml:"provider"`
}

// Default 全默认参数的实验配置
func Default() *Experiment {
	exp := &Experiment{ID: "default"}
	exp.applyDefaults()
	return exp
}

// Load 读取并校验实验配置，缺省字段填默认值
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment config: %w", err)
	}
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse experiment config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(exp); err != nil {
		return nil, fmt.Errorf("validate experiment config: %w", err)
	}
	exp.applyDefaults()
	if _, err := exp.QueryTimes(); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (e *Experiment) applyDefaults() {
	if e.DayOfWeek == "" {
		e.DayOfWeek = "Weekday"
	}
	if e.DayStart == "" {
		e.DayStart = "05:00:00"
	}
	if e.DayEnd == "" {
		e.DayEnd = "22:00:00"
	}
	if e.TimeIncrement == 0 {
		e.TimeIncrement = 15 * 60
	}
	if e.WindowSeconds == 0 {
		e.WindowSeconds = engine.DEFAULT_WINDOW_SECONDS
	}
	if e.Beta == 0 {
		e.Beta = engine.DEFAULT_BETA
	}
	if len(e.Preferences) == 0 {
		e.Preferences = []string{string(engine.PreferenceMinTime)}
	}
	if e.Provider.Mode == "" {
		e.Provider.Mode = "manhattan"
	}
	if e.Provider.SpeedMPS == 0 {
		e.Provider.SpeedMPS = engine.DEFAULT_WALK_SPEED
	}
}

// QueryTimes 服务日内离散化的全部查询时刻
func (e *Experiment) QueryTimes() ([]int, error) {
	start, err := engine.ParseClock(e.DayStart)
	if err != nil {
		return nil, fmt.Errorf("day_start: %w", err)
	}
	end, err := engine.ParseClock(e.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("day_end: %w", err)
	}
	if end < start {
		return nil, fmt.Errorf("day_end %s before day_start %s", e.DayEnd, e.DayStart)
	}
	times := make([]int, 0, (end-start)/e.TimeIncrement+1)
	for t := start; t <= end; t += e.TimeIncrement {
		times = append(times, t)
	}
	return times, nil
}

// PreferenceList 配置的偏好，已通过校验
func (e *Experiment) PreferenceList() []engine.Preference {
	prefs := make([]engine.Preference, 0, len(e.Preferences))
	for _, p := range e.Preferences {
		prefs = append(prefs, engine.Preference(p))
	}
	return prefs
}
