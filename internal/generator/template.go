package generator

import "text/template"

var fileTemplate = template.Must(template.New("events").Parse(`// Code generated by safe-event. DO NOT EDIT.
// Source: {{.Source}}

package {{.Package}}

import "github.com/rbaliyan/safe-event/payload"

// {{.Domain}} event names
const (
{{- range .Events}}
	{{.Const}} = {{printf "%q" .Name}}
{{- end}}
)

// {{.DomainIdent}}Events lists every {{.Domain}} event name
var {{.DomainIdent}}Events = []string{
{{- range .Events}}
	{{.Const}},
{{- end}}
}
{{range .Events}}
// {{.Payload}} is the payload of {{.Const}}.
{{- if .Description}}
// {{.Description}}
{{- end}}
type {{.Payload}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`" + `json:"{{.JSON}}{{if not .Required}},omitempty{{end}}"` + "`" + `{{if .Description}} // {{.Description}}{{end}}
{{- end}}
}

var {{.ShapeVar}} = payload.Shape{
{{- if .Required}}
	Required: []string{ {{- range $i, $r := .Required}}{{if $i}}, {{end}}{{printf "%q" $r}}{{end -}} },
{{- end}}
	Properties: map[string]payload.Kind{
{{- range .Fields}}
		{{printf "%q" .JSON}}: {{.Kind}},
{{- end}}
	},
	Closed: {{.Closed}},
}

// Validate{{.Type}} checks v against the {{.Name}} schema.
// v may be wrapped as {"data": v}.
func Validate{{.Type}}(v any) error {
	return payload.Check(v, {{.ShapeVar}})
}

// Decode{{.Type}} validates v and converts it to {{.Payload}}.
func Decode{{.Type}}(v any) ({{.Payload}}, error) {
	if err := Validate{{.Type}}(v); err != nil {
		return {{.Payload}}{}, err
	}
	return payload.As[{{.Payload}}](v, payload.Default())
}
{{end}}`))

// fileData is the template input for one schema document
type fileData struct {
	Source      string
	Package     string
	Domain      string
	DomainIdent string
	Events      []eventData
}

type eventData struct {
	Name        string
	Const       string
	Type        string
	Payload     string
	ShapeVar    string
	Description string
	Required    []string
	Closed      bool
	Fields      []fieldData
}

type fieldData struct {
	Name        string
	JSON        string
	Type        string
	Kind        string
	Required    bool
	Description string
}
