package paxos

import "encoding/json"

// valueKey gives proposed values (arbitrary JSON-compatible data) a
// comparable map key so Learner can count distinct values without
// requiring them to be Go-comparable types.
func valueKey(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
