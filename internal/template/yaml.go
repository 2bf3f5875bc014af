package template

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	pjson "bidsevents/internal/parser/json"
)

// ToYAMLNode converts a decoded JSON value to a yaml.v3 node, keeping
// object key order.
func ToYAMLNode(v any) *yaml.Node {
	switch t := v.(type) {
	case *pjson.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			n.Content = append(n.Content, scalar("!!str", k), ToYAMLNode(val))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			n.Content = append(n.Content, ToYAMLNode(e))
		}
		return n
	case nil:
		return scalar("!!null", "null")
	case bool:
		return scalar("!!bool", fmt.Sprint(t))
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return scalar("!!int", t.String())
		}
		return scalar("!!float", t.String())
	case string:
		return scalar("!!str", t)
	default:
		return scalar("!!str", fmt.Sprint(t))
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
