// Package schemas holds the JSON Schemas for payloads exchanged with the artifact store.
package schemas

import "embed"

// FS contains every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

// Schema file names.
const (
	ArtifactPage = "artifact_page.schema.json"
	ErrorBody    = "error_body.schema.json"
	UserList     = "user_list.schema.json"
)

// All lists every schema file name.
var All = []string{ArtifactPage, ErrorBody, UserList}
