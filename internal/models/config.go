package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/joshu-sajeev/queuectl/internal/config"
)

// QueueConfig is the persisted queue policy stored in config.json.
type QueueConfig struct {
	MaxRetries  int      `json:"max_retries"`
	BackoffBase Duration `json:"backoff_base"`
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries:  config.DefaultMaxRetries,
		BackoffBase: Duration(config.DefaultBackoffBase),
	}
}

func (c QueueConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.BackoffBase <= 0 {
		return errors.New("backoff_base must be positive")
	}
	return nil
}

// Duration is a time.Duration that encodes as a Go duration string.
// A bare JSON number is read as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(val * float64(time.Second))
		return nil
	case string:
		parsed, err := ParseDuration(val)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// ParseDuration accepts "1m30s" style strings or a plain number of seconds.
func ParseDuration(s string) (Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(parsed), nil
}
