package store

import (
	"encoding/json"
	"fmt"
	"ocpinode/utility"
	"reflect"
)

var ErrInvalidPatch = utility.Err("patch document must be a json object")
var ErrInvalidResultingState = utility.Err("patch violates entity invariants")

// applyMergePatch merges a patch document into the target: fields present
// in the patch overwrite, explicit nulls remove, absent fields stay, nested
// collections are replaced wholesale. Protected fields must come out of the
// merge unchanged. The result is canonical JSON.
func applyMergePatch(target, patch json.RawMessage, protected []string) (json.RawMessage, error) {
	var patchDoc map[string]interface{}
	if err := json.Unmarshal(patch, &patchDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var targetDoc map[string]interface{}
	if err := json.Unmarshal(target, &targetDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	merged := mergeValues(targetDoc, patchDoc)

	for _, field := range protected {
		after, ok := merged[field]
		if !ok {
			return nil, fmt.Errorf("%w: field %s removed", ErrInvalidResultingState, field)
		}
		if before, had := targetDoc[field]; had && !reflect.DeepEqual(before, after) {
			return nil, fmt.Errorf("%w: field %s changed", ErrInvalidResultingState, field)
		}
	}

	return json.Marshal(merged)
}

func mergeValues(target, patch map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(target))
	for key, value := range target {
		merged[key] = value
	}
	for key, value := range patch {
		if value == nil {
			delete(merged, key)
			continue
		}
		patchObject, patchIsObject := value.(map[string]interface{})
		targetObject, targetIsObject := merged[key].(map[string]interface{})
		if patchIsObject && targetIsObject {
			merged[key] = mergeValues(targetObject, patchObject)
			continue
		}
		// arrays and scalars replace wholesale
		merged[key] = value
	}
	return merged
}
