package workspace

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Subset returns the parts of data (a JSON document) selected by paths,
// merged into one document. No paths selects the whole document.
func Subset(data []byte, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	var out interface{}
	for _, p := range paths {
		parts := splitPath(p)
		if len(parts) == 0 {
			return data, nil
		}
		out = merge(out, extract(doc, parts))
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return json.Marshal(out)
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// extract returns the projection of v onto parts, or nil when nothing matches.
func extract(v interface{}, parts []string) interface{} {
	if len(parts) == 0 {
		return v
	}
	head, rest := parts[0], parts[1:]
	switch node := v.(type) {
	case map[string]interface{}:
		if head == "*" {
			out := make(map[string]interface{}, len(node))
			for k, child := range node {
				if sub := extract(child, rest); sub != nil {
					out[k] = sub
				}
			}
			return out
		}
		child, ok := node[head]
		if !ok {
			return nil
		}
		sub := extract(child, rest)
		if sub == nil {
			return nil
		}
		return map[string]interface{}{head: sub}
	case []interface{}:
		if head != "[*]" {
			return nil
		}
		out := make([]interface{}, len(node))
		for i, child := range node {
			out[i] = extract(child, rest)
		}
		return out
	}
	return nil
}

// merge combines two projections of the same document.
func merge(a, b interface{}) interface{} {
	switch av := a.(type) {
	case nil:
		return b
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return a
		}
		for k, child := range bv {
			av[k] = merge(av[k], child)
		}
		return av
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(bv) != len(av) {
			return a
		}
		for i := range av {
			av[i] = merge(av[i], bv[i])
		}
		return av
	}
	return a
}
