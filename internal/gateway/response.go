package gateway

import (
	"encoding/json"
	"sort"

	"github.com/jmespath-community/go-jmespath"

	apperrors "github.com/kramabill/billing-krama/internal/errors"
)

// messageExpr picks the human message the backend attaches to failures.
const messageExpr = "message || error"

// responseError converts a non-2xx exchange into an AppError. Message is
// left empty when the backend supplied none so callers can apply their own
// fallback text.
func responseError(ex exchange, code apperrors.ErrorCode) *apperrors.AppError {
	doc := decodeDocument(ex.body)
	msg := extractMessage(doc)
	fields := extractFields(doc)

	appErr := &apperrors.AppError{
		Code:    code,
		Message: msg,
		Status:  ex.status,
		Body:    ex.body,
		Fields:  fields,
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		appErr.Field = keys[0]
	}
	return appErr
}

func decodeDocument(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	return doc
}

func extractMessage(doc any) string {
	if doc == nil {
		return ""
	}
	res, err := jmespath.Search(messageExpr, doc)
	if err != nil {
		return ""
	}
	s, _ := res.(string)
	return s
}

// extractFields reads Laravel-style field errors: an "errors" object of
// field -> [messages]. When absent, top-level string arrays are used.
func extractFields(doc any) map[string][]string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if nested, ok := obj["errors"].(map[string]any); ok {
		return stringLists(nested, true)
	}
	return stringLists(obj, false)
}

// stringLists collects field -> messages. Single-string values count only
// inside an explicit "errors" object.
func stringLists(obj map[string]any, allowScalar bool) map[string][]string {
	out := make(map[string][]string)
	for field, raw := range obj {
		switch v := raw.(type) {
		case []any:
			var msgs []string
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					msgs = append(msgs, s)
				}
			}
			if len(msgs) > 0 {
				out[field] = msgs
			}
		case string:
			if allowScalar && v != "" {
				out[field] = []string{v}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
