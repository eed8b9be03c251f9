package memorykeep

import "encoding/json"

// ModuleDescriptor is one stored record interpreted as automation instructions.
type ModuleDescriptor map[string]any

// ModuleType returns the declared automation module type.
//
// The "type" field wins; "module_type" is the legacy fallback. Empty means
// the record is not an automation descriptor.
func (d ModuleDescriptor) ModuleType() string {
	if value, ok := d["type"].(string); ok && value != "" {
		return value
	}
	if value, ok := d["module_type"].(string); ok && value != "" {
		return value
	}

	return ""
}

// String returns the string value of one descriptor field, or "" when the
// field is absent or not a string.
func (d ModuleDescriptor) String(key string) string {
	value, _ := d[key].(string)
	return value
}

// DescriptorsFromPayload extracts automation module descriptors from one
// fetched memory payload.
//
// A structured object yields one descriptor, a structured array yields one
// descriptor per object element, and raw-text payloads yield none.
// Non-object array elements are skipped.
func DescriptorsFromPayload(payload Payload) []ModuleDescriptor {
	if payload.Format != FormatStructured || len(payload.JSON) == 0 {
		return nil
	}

	var single map[string]any
	if err := json.Unmarshal(payload.JSON, &single); err == nil {
		return []ModuleDescriptor{single}
	}

	var many []any
	if err := json.Unmarshal(payload.JSON, &many); err != nil {
		return nil
	}

	descriptors := make([]ModuleDescriptor, 0, len(many))
	for _, element := range many {
		object, ok := element.(map[string]any)
		if !ok {
			continue
		}
		descriptors = append(descriptors, ModuleDescriptor(object))
	}

	return descriptors
}
