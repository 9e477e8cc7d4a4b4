package pagestyle

// Normalize strips one layer of surrounding double quotes from the tool
// input. Anything else, including malformed URLs, is passed through as is.
func Normalize(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}
