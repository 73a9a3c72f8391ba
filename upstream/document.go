package upstream

import "github.com/tidwall/gjson"

// Document is a validated JSON response body.
type Document []byte

// Get queries the document with a gjson path.
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d, path)
}

// Result returns the whole document as a gjson result.
func (d Document) Result() gjson.Result {
	return gjson.ParseBytes(d)
}

// String returns the raw JSON.
func (d Document) String() string {
	return string(d)
}

func validDocument(body []byte) bool {
	return len(body) > 0 && gjson.ValidBytes(body)
}
