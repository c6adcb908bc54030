package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Keys accepted by ParseSetCommands.
const (
	KeySourceImagePath = "source_image_path"
	KeyMinGoodMatches  = "min_good_matches"
)

// Command is a typed TemplateState update. The set of commands is closed:
// SetSourceImage and SetMinMatches.
type Command interface {
	// validate checks the command without side effects.
	validate() error

	// fold applies the command to an unpublished state.
	fold(ctx context.Context, d *Detector, s *TemplateState) error
}

// SetSourceImage reloads the template from Path and re-extracts its features.
type SetSourceImage struct {
	Path string
}

func (c SetSourceImage) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return configError(KeySourceImagePath, `""`, errors.New("path is required"))
	}
	return nil
}

func (c SetSourceImage) fold(ctx context.Context, d *Detector, s *TemplateState) error {
	fs, err := d.loadTemplate(ctx, c.Path)
	if err != nil {
		return err
	}
	s.SourcePath = c.Path
	s.Features = fs
	s.LoadedAt = time.Now()
	return nil
}

// SetMinMatches changes the correspondence gate only.
type SetMinMatches struct {
	N int
}

func (c SetMinMatches) validate() error {
	if c.N < 1 {
		return configError(KeyMinGoodMatches, c.N, errors.New("must be at least 1"))
	}
	return nil
}

func (c SetMinMatches) fold(_ context.Context, _ *Detector, s *TemplateState) error {
	s.MinMatches = c.N
	return nil
}

// KeyValue is one entry of a "set" request.
type KeyValue struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// ParseSetCommands converts key/value pairs into typed commands, in order,
// and validates each one. Unknown keys, values of the wrong type and invalid
// values are ConfigurationErrors.
func ParseSetCommands(kvs []KeyValue) ([]Command, error) {
	cmds := make([]Command, 0, len(kvs))
	for _, kv := range kvs {
		switch kv.Key {
		case KeySourceImagePath:
			path, ok := kv.Value.(string)
			if !ok {
				return nil, configError(kv.Key, kv.Value, errors.New("must be a string"))
			}
			cmds = append(cmds, SetSourceImage{Path: path})
		case KeyMinGoodMatches:
			n, err := toInt(kv.Value)
			if err != nil {
				return nil, configError(kv.Key, kv.Value, err)
			}
			cmds = append(cmds, SetMinMatches{N: n})
		default:
			return nil, configError("key", strconv.Quote(kv.Key), errors.New("unknown setting"))
		}
		if err := cmds[len(cmds)-1].validate(); err != nil {
			return nil, err
		}
	}
	return cmds, nil
}

// toInt accepts the numeric shapes a decoded JSON value can take.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("must be an integer")
		}
		// -math.MinInt is one past math.MaxInt and exact as a float64.
		if n < math.MinInt || n >= -math.MinInt {
			return 0, fmt.Errorf("out of range")
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Wrap(err, "must be an integer")
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errors.Wrap(err, "must be an integer")
		}
		return i, nil
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
}
