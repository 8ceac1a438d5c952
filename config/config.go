// Package config defines the miner's immutable settings record. Loading
// and validating a YAML file into this record is an external
// responsibility; this package only defines the record's shape, its
// defaults, and the bounds-checking a caller should apply after decoding,
// the same separation the corpus draws between a settings struct (tagged
// for JSON/YAML decoding, e.g. node/api's response types) and the code that
// actually persists or loads one (host/storagemanager, out of scope here).
package config

import (
	"time"

	"gitlab.com/NebulousLabs/errors"
)

// Bounds on the tunables the miner accepts, per the upstream protocol and
// resource model.
const (
	MinBufferSize = 64 * 1024
	MaxBufferSize = 256 * 1024 * 1024

	MinHTTPTimeoutMs = 1000
	MaxHTTPTimeoutMs = 300000

	MinMiningInfoIntervalMs = 1000
	MaxMiningInfoIntervalMs = 60000

	DefaultMiningInfoIntervalMs = 3000

	SubmissionQueueCapacity = 1000
)

// AccountSettings holds per-account overrides.
type AccountSettings struct {
	AccountID      uint64 `json:"accountId" yaml:"accountId"`
	SecretPhrase   string `json:"secretPhrase" yaml:"secretPhrase"`
	TargetDeadline uint64 `json:"targetDeadline,omitempty" yaml:"targetDeadline,omitempty"`
}

// Settings is the immutable, validated configuration record every
// component is constructed from. Nothing in this package mutates a
// Settings after Validate succeeds.
type Settings struct {
	PlotDirectories []string          `json:"plotDirectories" yaml:"plotDirectories"`
	URL             string            `json:"url" yaml:"url"`
	Accounts        []AccountSettings `json:"accounts" yaml:"accounts"`

	CPUWorkers     int `json:"cpuWorkers" yaml:"cpuWorkers"`
	CPUBufferCount int `json:"cpuBufferCount" yaml:"cpuBufferCount"`
	GPUWorkers     int `json:"gpuWorkers" yaml:"gpuWorkers"`
	GPUBufferCount int `json:"gpuBufferCount" yaml:"gpuBufferCount"`
	BufferSize     int `json:"bufferSize" yaml:"bufferSize"`

	HTTPTimeoutMs        int `json:"httpTimeoutMs" yaml:"httpTimeoutMs"`
	MiningInfoIntervalMs int `json:"miningInfoIntervalMs" yaml:"miningInfoIntervalMs"`

	GlobalTargetDeadline uint64 `json:"globalTargetDeadline,omitempty" yaml:"globalTargetDeadline,omitempty"`
	SubmitOnlyBest       bool   `json:"submitOnlyBest" yaml:"submitOnlyBest"`
	CPUThreadPinning     bool   `json:"cpuThreadPinning" yaml:"cpuThreadPinning"`
	GPUMemMapping        bool   `json:"gpuMemMapping" yaml:"gpuMemMapping"`
	DirectIO             bool   `json:"directIO" yaml:"directIO"`
	LogLevel             string `json:"logLevel" yaml:"logLevel"`
	ReaderStats          bool   `json:"readerStats" yaml:"readerStats"`
}

// Default returns a Settings with every optional field at its documented
// default, and the required fields left empty for the caller to fill in.
func Default() Settings {
	return Settings{
		CPUWorkers:           1,
		CPUBufferCount:       4,
		BufferSize:           4 * 1024 * 1024,
		HTTPTimeoutMs:        30000,
		MiningInfoIntervalMs: DefaultMiningInfoIntervalMs,
		DirectIO:             true,
		LogLevel:             "info",
	}
}

// Validate checks s against the bounds and required-field rules; a
// Settings that fails validation must not be used to construct any
// pipeline component. This is a Configuration error per the error taxonomy
// and is fatal at startup.
func (s Settings) Validate() error {
	if len(s.PlotDirectories) == 0 {
		return errors.New("at least one plot directory is required")
	}
	if s.URL == "" {
		return errors.New("url is required")
	}
	if s.BufferSize < MinBufferSize || s.BufferSize > MaxBufferSize {
		return errors.New("bufferSize out of range")
	}
	if s.HTTPTimeoutMs < MinHTTPTimeoutMs || s.HTTPTimeoutMs > MaxHTTPTimeoutMs {
		return errors.New("httpTimeoutMs out of range")
	}
	if s.MiningInfoIntervalMs < MinMiningInfoIntervalMs || s.MiningInfoIntervalMs > MaxMiningInfoIntervalMs {
		return errors.New("miningInfoIntervalMs out of range")
	}
	if s.CPUWorkers < 0 || s.GPUWorkers < 0 {
		return errors.New("worker counts must not be negative")
	}
	return nil
}

// HTTPTimeout returns HTTPTimeoutMs as a time.Duration.
func (s Settings) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutMs) * time.Millisecond
}

// MiningInfoInterval returns MiningInfoIntervalMs as a time.Duration.
func (s Settings) MiningInfoInterval() time.Duration {
	return time.Duration(s.MiningInfoIntervalMs) * time.Millisecond
}

// EffectiveTarget returns the tightest deadline threshold in force for
// accountID: the minimum of the puzzle's target, any per-account override,
// and the global override, per the Miner Controller's candidate-evaluation
// rule.
func (s Settings) EffectiveTarget(accountID, puzzleTarget uint64) uint64 {
	target := puzzleTarget
	if s.GlobalTargetDeadline != 0 && s.GlobalTargetDeadline < target {
		target = s.GlobalTargetDeadline
	}
	for _, a := range s.Accounts {
		if a.AccountID == accountID && a.TargetDeadline != 0 && a.TargetDeadline < target {
			target = a.TargetDeadline
		}
	}
	return target
}
