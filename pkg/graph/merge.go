package graph

// MergeOutput merges an action's output into the running payload. When
// the action declares a namespace the output lands under that key;
// otherwise it is merged flat. Collisions overwrite, last writer wins.
// This mirrors the platform's documented (and intentionally ambiguous)
// merge policy; callers serialize merges per activation.
func MergeOutput(payload map[string]any, namespace string, output map[string]any) {
	if len(output) == 0 {
		return
	}

	if namespace != "" {
		existing, ok := payload[namespace].(map[string]any)
		if !ok {
			existing = make(map[string]any, len(output))
			payload[namespace] = existing
		}

		for key, value := range output {
			existing[key] = value
		}

		return
	}

	for key, value := range output {
		payload[key] = value
	}
}

// ClonePayload deep-copies one level plus nested maps so a suspended
// branch's persisted payload is not aliased by later merges.
func ClonePayload(payload map[string]any) map[string]any {
	clone := make(map[string]any, len(payload))

	for key, value := range payload {
		if nested, ok := value.(map[string]any); ok {
			clone[key] = ClonePayload(nested)

			continue
		}

		clone[key] = value
	}

	return clone
}
