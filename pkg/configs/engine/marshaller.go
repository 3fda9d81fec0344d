package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// load engine config from a file.
//
// args:
//   - filepath: filepath refers a config file.
//
// returns *EngineConfig, error:
//
//	When loading success, returns `(*EngineConfig, nil)`.
//	Otherwise, returns `(nil, error)`.
func LoadEngineConfig(filepath string) (*EngineConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *EngineConfig, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()

	var _out *EngineConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, err
	}
	out = TrySeal(_out)
	return out, nil
}
