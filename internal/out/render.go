package out

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ggonzalez94/orderfill/internal/config"
	"github.com/ggonzalez94/orderfill/internal/model"
)

func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.ResultsOnly {
		if settings.OutputMode == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
		return renderPlain(w, data)
	}

	if settings.OutputMode == "json" {
		env.Data = data
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	plain := map[string]any{
		"success":  env.Success,
		"data":     data,
		"warnings": env.Warnings,
		"meta":     env.Meta,
	}
	if env.Error != nil {
		plain["error"] = env.Error
	}
	return renderPlain(w, plain)
}

// RenderError writes a failure envelope. Plain mode prints only the message
// and its details so shell users see the cause first.
func RenderError(w io.Writer, env model.Envelope, settings config.Settings) error {
	if env.Error == nil || settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	line := fmt.Sprintf("error[%s]: %s", env.Error.Type, env.Error.Message)
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	if len(env.Error.Details) == 0 {
		return nil
	}
	detail, err := toLine(normalizeValue(env.Error.Details))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, detail)
	return err
}

func renderPlain(w io.Writer, data any) error {
	n := normalizeValue(data)
	items, isList := n.([]any)
	if !isList {
		line, err := toLine(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	for _, item := range items {
		line, err := toLine(item)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// project keeps only fields. A dotted field such as inverted.make selects a
// nested value and keeps the dotted key.
func project(data any, fields []string) any {
	n := normalizeValue(data)
	switch t := n.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, projectMap(m, fields))
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return n
	}
}

func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookup(m, f); ok {
			out[f] = v
		}
	}
	return out
}

func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// normalizeValue round-trips v through JSON so custom marshalers (addresses,
// big integers, order payloads) render the same in every mode. Numbers stay
// json.Number to keep token amounts exact.
func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

// toLine renders objects as sorted key=value pairs with nested objects
// flattened to dotted keys.
func toLine(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
	if len(m) == 0 {
		return "{}", nil
	}
	flat := map[string]string{}
	flatten("", m, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+flat[k])
	}
	return strings.Join(parts, " "), nil
}

func flatten(prefix string, v any, into map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			into[prefix] = "{}"
			return
		}
		for k, item := range t {
			flatten(joinKey(prefix, k), item, into)
		}
	case []any:
		if len(t) == 0 {
			into[prefix] = "[]"
			return
		}
		for i, item := range t {
			flatten(joinKey(prefix, strconv.Itoa(i)), item, into)
		}
	case nil:
		into[prefix] = "null"
	default:
		into[prefix] = fmt.Sprint(t)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
