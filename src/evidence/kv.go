package evidence

import "strings"

// parseKV splits a whitespace-separated "k=v k2=v2" template body into a
// map. Tokens without an "=" are ignored; this intentionally matches the
// plain tokenizer the seed authoring tools emit, with no quoting support.
func parseKV(templateBody string) map[string]string {
	kv := make(map[string]string)
	for _, part := range strings.Fields(templateBody) {
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			kv[strings.TrimSpace(part[:idx])] = strings.TrimSpace(part[idx+1:])
		}
	}
	return kv
}

func kvGet(kv map[string]string, key, fallback string) string {
	if v, ok := kv[key]; ok {
		return v
	}
	return fallback
}
