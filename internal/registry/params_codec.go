package registry

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/splitrelay/internal/tasks"
)

// EncodeParams serialises task parameters for the params column.
func EncodeParams(params tasks.Params) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	data, err := msgpack.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s params: %w", params.Kind(), err)
	}
	return data, nil
}

// DecodeParams restores the parameters of a task of the given kind.
func DecodeParams(kind tasks.Kind, data []byte) (tasks.Params, error) {
	params, err := tasks.NewParams(kind)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return params, nil
	}
	if err := msgpack.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("failed to decode %s params: %w", kind, err)
	}
	return params, nil
}
