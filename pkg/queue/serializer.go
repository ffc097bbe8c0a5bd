package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/yvasiyarov/php_session_decoder/php_serialize"
)

// Codec turns jobs into stored bytes and back.
//
// Encode must store the job's try counter plus one; Decode restores the
// counter from the stored form. That is what makes TryIndex count attempts.
type Codec interface {
	Encode(j Job) ([]byte, error)
	Decode(data []byte) (Job, error)
}

// DefaultCodec is a JSONCodec over the default registry.
func DefaultCodec() Codec {
	return NewJSONCodec(nil)
}

// JSONCodec stores jobs as a JSON Payload envelope.
type JSONCodec struct {
	registry *Registry
}

// NewJSONCodec creates a JSONCodec. A nil registry means DefaultRegistry.
func NewJSONCodec(registry *Registry) *JSONCodec {
	if registry == nil {
		registry = defaultRegistry
	}
	return &JSONCodec{registry: registry}
}

func (c *JSONCodec) Encode(j Job) ([]byte, error) {
	b, err := baseOf(j)
	if err != nil {
		return nil, err
	}
	name, err := c.registry.NameOf(j)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", name, err)
	}

	return json.Marshal(Payload{
		UUID:     jobUUID(b),
		Type:     name,
		TryIndex: b.nextTryIndex(),
		Data:     data,
	})
}

func (c *JSONCodec) Decode(data []byte) (Job, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Type == "" {
		return nil, errors.New("payload has no job type")
	}
	if payload.TryIndex < 0 {
		return nil, fmt.Errorf("payload has negative try index %d", payload.TryIndex)
	}

	j, err := c.registry.New(payload.Type)
	if err != nil {
		return nil, err
	}
	if len(payload.Data) > 0 && !bytes.Equal(payload.Data, []byte("null")) {
		if err := json.Unmarshal(payload.Data, j); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", payload.Type, err)
		}
	}

	b, err := baseOf(j)
	if err != nil {
		return nil, err
	}
	b.restore(payload.TryIndex, payload.UUID)
	return j, nil
}

func jobUUID(b *BaseJob) string {
	if b.uuid != "" {
		return b.uuid
	}
	return uuid.New().String()
}

const (
	phpTryIndexProp = "_try_index"
	phpUUIDProp     = "_uuid"
)

// PHPCodec stores jobs in PHP's serialize() object format, so that PHP
// producers and Go workers can share work queues.
//
// The registered job name is used as the PHP class name. The job's JSON
// fields become public properties; the try counter and UUID are stored as
// the protected properties _try_index and _uuid.
type PHPCodec struct {
	registry *Registry
}

// NewPHPCodec creates a PHPCodec. A nil registry means DefaultRegistry.
func NewPHPCodec(registry *Registry) *PHPCodec {
	if registry == nil {
		registry = defaultRegistry
	}
	return &PHPCodec{registry: registry}
}

func (c *PHPCodec) Encode(j Job) ([]byte, error) {
	b, err := baseOf(j)
	if err != nil {
		return nil, err
	}
	name, err := c.registry.NameOf(j)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("encode job %s: %w", name, err)
	}

	obj := php_serialize.NewPhpObject(name)
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		obj.SetPublic(key, toPHPValue(props[key]))
	}
	obj.SetProtected(phpTryIndexProp, b.nextTryIndex())
	obj.SetProtected(phpUUIDProp, jobUUID(b))

	encoded, err := php_serialize.NewSerializer().Encode(obj)
	if err != nil {
		return nil, err
	}
	return []byte(encoded), nil
}

func (c *PHPCodec) Decode(data []byte) (Job, error) {
	value, err := php_serialize.UnSerialize(string(data))
	if err != nil {
		return nil, err
	}
	obj, ok := value.(*php_serialize.PhpObject)
	if !ok {
		return nil, fmt.Errorf("non-object serialization (%T)", value)
	}

	j, err := c.registry.New(obj.GetClassName())
	if err != nil {
		return nil, err
	}

	props := make(map[string]any)
	tries := 0
	id := ""
	for k, v := range obj.GetMembers() {
		key, ok := k.(string)
		if !ok {
			continue
		}
		// Protected members are stored as "\0*\0name", private ones as "\0Class\0name".
		if i := strings.LastIndexByte(key, 0); i >= 0 {
			key = key[i+1:]
		}
		switch key {
		case phpTryIndexProp:
			tries, err = phpInt(v)
			if err != nil {
				return nil, fmt.Errorf("decode job %s: %s: %w", obj.GetClassName(), phpTryIndexProp, err)
			}
		case phpUUIDProp:
			id, _ = v.(string)
		default:
			props[key] = fromPHPValue(v)
		}
	}

	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("decode job %s: %w", obj.GetClassName(), err)
	}
	if err := json.Unmarshal(raw, j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", obj.GetClassName(), err)
	}

	b, err := baseOf(j)
	if err != nil {
		return nil, err
	}
	b.restore(tries, id)
	return j, nil
}

func toPHPValue(v any) php_serialize.PhpValue {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		arr := make(php_serialize.PhpArray, len(t))
		for k, item := range t {
			arr[k] = toPHPValue(item)
		}
		return arr
	case []any:
		arr := make(php_serialize.PhpArray, len(t))
		for i, item := range t {
			arr[i] = toPHPValue(item)
		}
		return arr
	default:
		return t
	}
}

func fromPHPValue(v php_serialize.PhpValue) any {
	arr, ok := v.(php_serialize.PhpArray)
	if !ok {
		return v
	}

	// Arrays with keys 0..n-1 are lists, everything else is a map.
	list := make([]any, len(arr))
	isList := true
	for k, item := range arr {
		i, ok := k.(int)
		if !ok || i < 0 || i >= len(arr) {
			isList = false
			break
		}
		list[i] = fromPHPValue(item)
	}
	if isList {
		return list
	}

	m := make(map[string]any, len(arr))
	for k, item := range arr {
		m[fmt.Sprint(k)] = fromPHPValue(item)
	}
	return m
}

func phpInt(v php_serialize.PhpValue) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
